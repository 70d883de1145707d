// Package stats turns an execution log into per-group latency, pass/fail and
// throughput figures.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wesleyorama2/replay/internal/execlog"
	"github.com/wesleyorama2/replay/internal/status"
)

// DefaultPercentile is used when Options.Percentile is zero.
const DefaultPercentile = 90

// ErrNoRecords is returned when no record is left after filtering.
var ErrNoRecords = errors.New("no execution records to analyse")

// Options select the grouping and the figures of a report.
type Options struct {
	Dimension Dimension
	// Percentile is in (0, 100].
	Percentile float64
	// ExcludeThreads drops the records of these threads.
	ExcludeThreads []string
	Classifier     status.Classifier
}

// ParseExclude splits a "T01:T03" thread list.
func ParseExclude(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ":") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Row holds the figures of one group. Durations are in seconds.
type Row struct {
	Key        []string
	Count      int
	Min        float64
	Max        float64
	Mean       float64
	StdDev     float64
	Percentile float64
	Pass       int
	Fail       int
	// TPS is passes per second between the first start and the last end of
	// the group. It is NaN when both instants coincide.
	TPS   float64
	Start time.Time
	End   time.Time
}

// Summary describes the whole (filtered) log.
type Summary struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Bytes    int64
	// TPS is the sum of the defined per-group TPS values.
	TPS     float64
	Threads int
	Records int
}

// Report is the result of Compute.
type Report struct {
	Options Options
	Summary Summary
	Rows    []Row
}

// Compute groups records by the selected dimension. Records are only read.
func Compute(records []*execlog.Record, opts Options) (*Report, error) {
	if opts.Dimension == 0 {
		opts.Dimension = ByTestCase
	}
	if _, ok := opts.Dimension.scenario(); !ok {
		return nil, fmt.Errorf("unsupported scenario %d", opts.Dimension)
	}
	if opts.Percentile == 0 {
		opts.Percentile = DefaultPercentile
	}
	if opts.Percentile < 0 || opts.Percentile > 100 {
		return nil, fmt.Errorf("percentile %v out of range (0, 100]", opts.Percentile)
	}
	if opts.Classifier == (status.Classifier{}) {
		opts.Classifier = status.DefaultClassifier()
	}

	excluded := make(map[string]bool, len(opts.ExcludeThreads))
	for _, t := range opts.ExcludeThreads {
		excluded[t] = true
	}

	type group struct {
		key       []string
		durations []float64
		pass      int
		start     time.Time
		end       time.Time
	}
	groups := make(map[string]*group)
	threads := make(map[string]bool)
	rep := &Report{Options: opts}

	for _, r := range records {
		if excluded[r.Thread] {
			continue
		}
		key := opts.Dimension.key(r)
		id := strings.Join(key, "\x00")
		g, ok := groups[id]
		if !ok {
			g = &group{key: key, start: r.Start, end: r.End}
			groups[id] = g
		}
		g.durations = append(g.durations, r.Duration)
		if opts.Classifier.IsPass(r.Status) {
			g.pass++
		}
		if r.Start.Before(g.start) {
			g.start = r.Start
		}
		if r.End.After(g.end) {
			g.end = r.End
		}

		s := &rep.Summary
		if s.Records == 0 || r.Start.Before(s.Start) {
			s.Start = r.Start
		}
		if s.Records == 0 || r.End.After(s.End) {
			s.End = r.End
		}
		s.Records++
		s.Bytes += r.Bytes
		threads[r.Thread] = true
	}
	if rep.Summary.Records == 0 {
		return nil, ErrNoRecords
	}
	rep.Summary.Duration = rep.Summary.End.Sub(rep.Summary.Start)
	rep.Summary.Threads = len(threads)

	for _, g := range groups {
		sort.Float64s(g.durations)
		row := Row{
			Key:        g.key,
			Count:      len(g.durations),
			Min:        g.durations[0],
			Max:        g.durations[len(g.durations)-1],
			Pass:       g.pass,
			Fail:       len(g.durations) - g.pass,
			Start:      g.start,
			End:        g.end,
			Percentile: Percentile(g.durations, opts.Percentile),
		}
		row.Mean, row.StdDev = meanStdDev(g.durations)
		row.TPS = math.NaN()
		if span := g.end.Sub(g.start).Seconds(); span > 0 {
			row.TPS = float64(g.pass) / span
		}
		if !math.IsNaN(row.TPS) {
			rep.Summary.TPS += row.TPS
		}
		rep.Rows = append(rep.Rows, row)
	}
	sort.Slice(rep.Rows, func(i, j int) bool {
		return lessKey(rep.Rows[i].Key, rep.Rows[j].Key)
	})
	return rep, nil
}

func lessKey(a, b []string) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Percentile returns the p-th percentile of sorted, interpolating linearly
// between the two closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// meanStdDev returns the mean and the population standard deviation.
func meanStdDev(xs []float64) (mean, stddev float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
