package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

const summaryClock = "15:04:05"

// WriteCSV writes the run summary followed by the group table. Figures are
// rounded to three decimals; an undefined TPS is written as NaN.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	s := r.Summary

	lines := [][]string{
		{},
		{"", "", "Start Time", "End Time", "Duration in sec.", "Throughput (MB)", "TPS (total)", "", "Multi Threads"},
		{
			"", "",
			s.Start.Format(summaryClock),
			s.End.Format(summaryClock),
			strconv.FormatInt(int64(s.Duration.Seconds()), 10),
			round3(float64(s.Bytes) / 1e6),
			round3(s.TPS),
			"",
			strconv.Itoa(s.Threads),
		},
		{},
		{},
	}

	header := append([]string(nil), r.Options.Dimension.Columns()...)
	header = append(header,
		"Min.(sec.)", "Max.(sec.)", "Ave.(sec.)", "Std. Dev.",
		fmt.Sprintf("%s Percentile", strconv.FormatFloat(r.Options.Percentile, 'f', -1, 64)),
		"Pass", "Fail", "TPS")
	lines = append(lines, header)

	for _, row := range r.Rows {
		line := append([]string(nil), row.Key...)
		line = append(line,
			round3(row.Min),
			round3(row.Max),
			round3(row.Mean),
			round3(row.StdDev),
			round3(row.Percentile),
			strconv.Itoa(row.Pass),
			strconv.Itoa(row.Fail),
			round3(row.TPS),
		)
		lines = append(lines, line)
	}

	if err := cw.WriteAll(lines); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func round3(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
