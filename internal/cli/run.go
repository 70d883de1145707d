package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/replay/internal/auth"
	"github.com/wesleyorama2/replay/internal/config"
	"github.com/wesleyorama2/replay/internal/directive"
	"github.com/wesleyorama2/replay/internal/engine"
	"github.com/wesleyorama2/replay/internal/execlog"
	"github.com/wesleyorama2/replay/internal/executor/httpexec"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/metrics"
	"github.com/wesleyorama2/replay/internal/output"
	"github.com/wesleyorama2/replay/internal/ramp"
	"github.com/wesleyorama2/replay/internal/testcase"
)

type runOptions struct {
	threads    int
	ramp       string
	pacingMs   int
	duration   float64
	count      int
	file       string
	directives []string
	tokenMode  bool
	logFile    string
	jsonFile   string
	progress   time.Duration
	quiet      bool
	noColor    bool
}

var runBindings = map[string]string{
	"env":       config.KeyEnv,
	"catalog":   config.KeyCatalog,
	"timeout":   config.KeyTimeout,
	"max-tries": config.KeyMaxTries,
	"max-rps":   config.KeyMaxRPS,
	"think":     config.KeyThink,
	"insecure":  config.KeyInsecure,
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run directives against the selected environment",
		Long: `Run loads directives from a file (one per line) or from --directive flags
and executes them with a pool of workers. Each line reads

  <testCaseId>,<param>,<param>,...[,+a,<pacingMs>;<thinkMs>:<durationMin>;<count>;<U>:<tag>]

Text after '#' is a comment.

With --duration the source is reloaded after every wave until the time is up;
otherwise every directive runs --count times (or as its override says).

Examples:
  replay run --file directives.txt --threads 10 --ramp 5:20 --count 3
  replay run --env staging --directive "C01,alice:secret" --duration 15 --pacing 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDirectives(cmd, g, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.threads, "threads", "t", 1, "Number of workers")
	f.StringVarP(&opts.ramp, "ramp", "r", "", "Ramp-up as batch:intervalSeconds (e.g. 5:20)")
	f.IntVarP(&opts.pacingMs, "pacing", "p", 0, "Pause before every execution, in milliseconds")
	f.Float64VarP(&opts.duration, "duration", "d", 0, "Run duration in minutes; reloads the source after each wave")
	f.IntVarP(&opts.count, "count", "c", 1, "Executions of every directive")
	f.StringVarP(&opts.file, "file", "f", "", "Directive file")
	f.StringArrayVar(&opts.directives, "directive", nil, "Directive line (repeatable)")
	f.BoolVar(&opts.tokenMode, "token", false, "Treat credentials as pre-issued tokens and skip login")
	f.StringVarP(&opts.logFile, "log-file", "o", "", "Execution log path (default replay_M<threads>.<timestamp>.csv)")
	f.StringVar(&opts.jsonFile, "json", "", "Also write the run summary as JSON to this file")
	f.DurationVar(&opts.progress, "progress", 10*time.Second, "Progress line interval (0 disables)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the final status")
	f.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	f.StringP("env", "e", "", "Environment name or base URL")
	f.String("catalog", "", "Test case catalog file")
	f.Duration("timeout", 0, "Request timeout")
	f.Int("max-tries", 0, "Attempt budget of a pending request")
	f.Float64("max-rps", 0, "Request rate ceiling shared by all workers (0 = unlimited)")
	f.Duration("think", 0, "Pause between the steps of a test case")
	f.Bool("insecure", false, "Skip TLS certificate verification of the target")

	cmd.MarkFlagsMutuallyExclusive("duration", "count")
	cmd.MarkFlagsMutuallyExclusive("file", "directive")
	cmd.MarkFlagsOneRequired("file", "directive")
	return cmd
}

func runDirectives(cmd *cobra.Command, g *globalOptions, opts *runOptions) error {
	settings, err := g.settings(cmd, runBindings)
	if err != nil {
		return err
	}
	log, closer, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	runID := uuid.NewString()
	rlog := log.WithField("run_id", runID)

	target, err := settings.Target()
	if err != nil {
		return &failure.ConfigurationError{Source: "settings", Err: err}
	}
	classifier, err := settings.Classifier()
	if err != nil {
		return &failure.ConfigurationError{Source: "settings", Err: err}
	}
	reg, err := testcase.LoadCatalog(settings.Catalog)
	if err != nil {
		return err
	}
	if !opts.tokenMode {
		warnMissingLogin(reg, settings, rlog)
	}
	rampSpec, err := ramp.ParseSpec(opts.ramp)
	if err != nil {
		return &failure.ConfigurationError{Source: "--ramp", Err: err}
	}

	var src directive.Source
	if opts.file != "" {
		src = directive.NewFileSource(opts.file)
	} else {
		src = &directive.StaticSource{Lines: opts.directives}
	}
	loader := &directive.Loader{Source: src, Registry: reg}
	// Fail on a bad source before the execution log is created.
	if _, err := loader.Load(); err != nil {
		return err
	}

	cfg := engine.Config{
		Threads:    opts.threads,
		Ramp:       rampSpec,
		Count:      opts.count,
		Duration:   time.Duration(opts.duration * float64(time.Minute)),
		Pacing:     time.Duration(opts.pacingMs) * time.Millisecond,
		Think:      settings.Think,
		TokenMode:  opts.tokenMode,
		MaxTries:   settings.MaxTries,
		Classifier: classifier,
		MaxRPS:     settings.MaxRPS,
	}

	start := time.Now()
	logPath := opts.logFile
	if logPath == "" {
		logPath = execlog.DefaultName(opts.threads, start)
	}

	clientOpts := []httpexec.ClientOption{
		httpexec.WithBaseURL(target.BaseURL),
		httpexec.WithHeaders(target.Headers),
		httpexec.WithTimeout(settings.Timeout),
		httpexec.WithTraceID(runID),
	}
	if settings.Insecure {
		tc := httpexec.DefaultTransportConfig()
		tc.InsecureSkipVerify = true
		clientOpts = append(clientOpts, httpexec.WithTransport(tc))
		rlog.Warn("TLS certificate verification is disabled")
	}
	client := httpexec.NewClient(clientOpts...)

	m := metrics.NewEngine()
	writer, err := execlog.Create(logPath)
	if err != nil {
		return err
	}
	defer writer.Close()
	rec := execlog.NewRecorder(client, writer, rlog)

	engineOpts := []engine.Option{engine.WithLogger(rlog), engine.WithMetrics(m)}
	if settings.Login.Resource != "" {
		login := &auth.HTTPLogin{
			Executor:  rec,
			Method:    settings.Login.Method,
			Resource:  settings.Login.Resource,
			Body:      settings.Login.Body,
			TokenPath: settings.Login.TokenPath,
			Headers:   settings.Login.Headers,
		}
		engineOpts = append(engineOpts, engine.WithAuthenticator(login.ForThread))
	}
	eng, err := engine.New(cfg, loader, rec, engineOpts...)
	if err != nil {
		return err
	}

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		Quiet:   opts.quiet,
		NoColor: opts.noColor,
	})
	console.PrintHeader(output.RunInfo{
		RunID:       runID,
		Environment: settings.Env,
		BaseURL:     target.BaseURL,
		Source:      src.Name(),
		Threads:     opts.threads,
		Ramp:        rampSpec.String(),
		Mode:        modeOf(cfg),
		Pacing:      cfg.Pacing,
		LogFile:     logPath,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressCtx, stopProgress := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Report(progressCtx, opts.progress, console.PrintProgress)
	}()

	rlog.WithFields(logrus.Fields{
		"env":     settings.Env,
		"threads": cfg.Threads,
		"log":     logPath,
	}).Info("Run started")

	sum, err := eng.Run(ctx)
	stopProgress()
	<-done
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	rlog.WithFields(logrus.Fields{
		"elapsed":     sum.Elapsed.Round(time.Millisecond).String(),
		"executions":  sum.Executions,
		"records":     writer.Count(),
		"interrupted": sum.Interrupted,
	}).Info("Run finished")
	cases := m.GetTestCaseStats()
	console.PrintSummary(sum, cases, logPath)
	if opts.jsonFile != "" {
		return writeResult(opts.jsonFile, &runResult{
			RunID:       runID,
			Environment: settings.Env,
			BaseURL:     target.BaseURL,
			LogFile:     logPath,
			Summary:     sum,
			TestCases:   cases,
		})
	}
	return nil
}

// runResult is the JSON form of a finished run.
type runResult struct {
	RunID       string                  `json:"runId"`
	Environment string                  `json:"environment"`
	BaseURL     string                  `json:"baseUrl"`
	LogFile     string                  `json:"logFile"`
	Summary     *engine.Summary         `json:"summary"`
	TestCases   []metrics.TestCaseStats `json:"testCases"`
}

func writeResult(path string, result *runResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing result to file: %w", err)
	}
	return nil
}

// warnMissingLogin flags authenticated test cases when no login endpoint is
// configured. Their directives are skipped unless they carry tokens.
func warnMissingLogin(reg *testcase.Registry, settings *config.Settings, log logrus.FieldLogger) {
	if settings.Login.Resource != "" {
		return
	}
	for _, tc := range reg.List() {
		if tc.RequiresAuth() {
			log.WithField("testcase", tc.ID()).Warn("Test case requires authentication but login.resource is not set")
		}
	}
}

func modeOf(cfg engine.Config) string {
	if cfg.Duration > 0 {
		return fmt.Sprintf("duration %s", cfg.Duration)
	}
	return fmt.Sprintf("count %d", cfg.Count)
}
