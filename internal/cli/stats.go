package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/replay/internal/execlog"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/stats"
)

type statsOptions struct {
	log        string
	scenario   string
	percentile float64
	exclude    string
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	opts := &statsOptions{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize an execution log as CSV",
		Long: `Stats reads an execution log, groups its records by the selected scenario
and writes a CSV report to standard output: a run summary followed by one
row per group with min, max, mean, standard deviation and percentile
latency, pass and fail counts and TPS.

Scenarios (see "replay list"):
  100  by test case
  101  by thread and test case
  102  by thread, test case and tag
  103  by URL
  104  by URL and tag

Example:
  replay stats --log replay_M10.20240101120000.csv --scenario 101 --percentile 95 --exclude T01:T02`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.log, "log", "l", "", "Execution log to analyse")
	f.StringVarP(&opts.scenario, "scenario", "s", stats.ByTestCase.String(), "Grouping scenario id")
	f.Float64VarP(&opts.percentile, "percentile", "p", stats.DefaultPercentile, "Percentile to report, in (0, 100]")
	f.StringVarP(&opts.exclude, "exclude", "x", "", "Threads to leave out, colon separated (e.g. T01:T03)")
	cmd.MarkFlagRequired("log")
	return cmd
}

func runStats(cmd *cobra.Command, g *globalOptions, opts *statsOptions) error {
	settings, err := g.settings(cmd, nil)
	if err != nil {
		return err
	}
	log, closer, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	if opts.percentile <= 0 || opts.percentile > 100 {
		return failure.Configf("--percentile", "%v out of range (0, 100]", opts.percentile)
	}
	dim, err := stats.ParseDimension(opts.scenario)
	if err != nil {
		return &failure.ConfigurationError{Source: "--scenario", Err: err}
	}
	classifier, err := settings.Classifier()
	if err != nil {
		return &failure.ConfigurationError{Source: "settings", Err: err}
	}

	res, err := execlog.ReadFile(opts.log)
	if err != nil {
		return &failure.ConfigurationError{Source: opts.log, Err: err}
	}
	for _, le := range res.Skipped {
		log.WithField("log", opts.log).WithError(le.Err).Warnf("Skipping malformed line %d", le.Line)
	}

	report, err := stats.Compute(res.Records, stats.Options{
		Dimension:      dim,
		Percentile:     opts.percentile,
		ExcludeThreads: stats.ParseExclude(opts.exclude),
		Classifier:     classifier,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", opts.log, err)
	}

	log.WithFields(logrus.Fields{
		"records":  report.Summary.Records,
		"groups":   len(report.Rows),
		"skipped":  len(res.Skipped),
		"scenario": dim.String(),
	}).Debug("Report computed")
	return report.WriteCSV(cmd.OutOrStdout())
}
