// Package engine runs directives against a service with a pool of workers,
// wave after wave, until the source is exhausted or the run deadline passes.
package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/replay/internal/auth"
	"github.com/wesleyorama2/replay/internal/directive"
	"github.com/wesleyorama2/replay/internal/executor"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/metrics"
	"github.com/wesleyorama2/replay/internal/ramp"
	"github.com/wesleyorama2/replay/internal/retry"
	"github.com/wesleyorama2/replay/internal/schedule"
	"github.com/wesleyorama2/replay/internal/status"
)

// Config holds the run-wide settings.
type Config struct {
	// Threads is the number of workers started every wave.
	Threads int
	// Ramp staggers worker start; nil starts all workers at once.
	Ramp *ramp.Spec

	// Count is the default number of repeats of a directive.
	Count int
	// Duration bounds the whole run. When set, the directive source is
	// reloaded after each wave until the deadline passes.
	Duration time.Duration

	Pacing    time.Duration
	Think     time.Duration
	TokenMode bool

	// MaxTries is the attempt budget of a pending request.
	MaxTries   int
	Classifier status.Classifier

	// MaxRPS caps the request rate shared by all workers; 0 is unlimited.
	MaxRPS float64
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := &failure.ValidationErrors{}
	if c.Threads < 1 {
		errs.Addf("threads", "must be at least 1, got %d", c.Threads)
	}
	if c.Count < 0 {
		errs.Addf("count", "must not be negative, got %d", c.Count)
	}
	if c.Duration < 0 {
		errs.Addf("duration", "must not be negative, got %v", c.Duration)
	}
	if c.Pacing < 0 {
		errs.Addf("pacing", "must not be negative, got %v", c.Pacing)
	}
	if c.Think < 0 {
		errs.Addf("think", "must not be negative, got %v", c.Think)
	}
	if c.MaxTries < 0 {
		errs.Addf("maxTries", "must not be negative, got %d", c.MaxTries)
	}
	if c.MaxRPS < 0 {
		errs.Addf("maxRps", "must not be negative, got %v", c.MaxRPS)
	}
	if c.Ramp != nil && c.Ramp.Batch < 1 {
		errs.Addf("ramp", "batch size must be at least 1, got %d", c.Ramp.Batch)
	}
	return errs.ErrOrNil()
}

// DirectiveLoader returns the resolved directives of the next wave.
type DirectiveLoader interface {
	Load() ([]*directive.Directive, error)
}

// Engine coordinates the waves of a run.
type Engine struct {
	cfg     Config
	loader  DirectiveLoader
	exec    executor.Executor
	log     logrus.FieldLogger
	metrics *metrics.Engine
	authFor func(thread string) auth.Authenticator
	sleep   retry.Sleeper
	now     func() time.Time
	retry   *retry.Policy
	limiter *rate.Limiter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the live metrics engine.
func WithMetrics(m *metrics.Engine) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuthenticator sets the factory of per-worker authenticators.
func WithAuthenticator(fn func(thread string) auth.Authenticator) Option {
	return func(e *Engine) { e.authFor = fn }
}

// WithSleeper replaces the clock used for pacing, think time, backoff and
// ramp intervals.
func WithSleeper(s retry.Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates cfg and builds an Engine.
func New(cfg Config, loader DirectiveLoader, exec executor.Executor, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &failure.ConfigurationError{Source: "run settings", Err: err}
	}
	if cfg.Classifier == (status.Classifier{}) {
		cfg.Classifier = status.DefaultClassifier()
	}

	e := &Engine{
		cfg:    cfg,
		loader: loader,
		exec:   exec,
		sleep:  retry.SleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	if e.metrics == nil {
		e.metrics = metrics.NewEngine()
	}

	e.retry = retry.New(cfg.MaxTries, cfg.Classifier.IsPending)
	e.retry.Sleep = e.sleep
	if cfg.MaxRPS > 0 {
		burst := int(math.Ceil(cfg.MaxRPS))
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return e, nil
}

// Metrics returns the live metrics engine.
func (e *Engine) Metrics() *metrics.Engine {
	return e.metrics
}

// Summary describes a finished run.
type Summary struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Elapsed time.Duration `json:"elapsed"`

	Waves      int `json:"waves"`
	Directives int `json:"directives"`
	// Executions counts directive repeats, Skipped the directives dropped
	// after a failed login.
	Executions int64 `json:"executions"`
	Skipped    int64 `json:"skipped"`
	// Interrupted is set when the run was cancelled before completion.
	Interrupted bool `json:"interrupted"`

	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

// Run executes waves until the run is complete. A directive source that
// cannot be loaded aborts the run with a *failure.ConfigurationError before
// any worker of that wave starts. Cancelling ctx ends the run after the
// in-flight requests; it is reported through Summary.Interrupted.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{Start: e.now()}
	var deadline time.Time
	if e.cfg.Duration > 0 {
		deadline = sum.Start.Add(e.cfg.Duration)
	}
	defaults := schedule.Defaults{
		Deadline:  deadline,
		Count:     e.cfg.Count,
		Pacing:    e.cfg.Pacing,
		Think:     e.cfg.Think,
		TokenMode: e.cfg.TokenMode,
	}
	finish := func() *Summary {
		sum.End = e.now()
		sum.Elapsed = sum.End.Sub(sum.Start)
		sum.Metrics = e.metrics.GetSnapshot()
		return sum
	}

	for wave := 1; ; wave++ {
		ds, err := e.loader.Load()
		if err != nil {
			var cerr *failure.ConfigurationError
			if !errors.As(err, &cerr) {
				err = &failure.ConfigurationError{Err: err}
			}
			return finish(), err
		}

		e.metrics.SetWave(wave)
		log := e.log.WithField("wave", wave)
		log.WithFields(logrus.Fields{
			"directives": len(ds),
			"threads":    e.cfg.Threads,
			"ramp":       e.cfg.Ramp.String(),
		}).Info("Wave started")

		workers := e.runWave(ctx, ds, defaults)

		sum.Waves = wave
		sum.Directives += len(ds)
		for _, w := range workers {
			sum.Executions += w.Executions()
			sum.Skipped += w.Skipped()
		}
		log.WithField("executions", sum.Executions).Info("Wave finished")

		if ctx.Err() != nil {
			sum.Interrupted = true
			e.log.Warn("Run interrupted")
			return finish(), nil
		}
		if deadline.IsZero() || !e.now().Before(deadline) {
			return finish(), nil
		}
	}
}

// runWave starts the workers through the ramp and returns once every
// directive of the wave is done and every worker has terminated.
func (e *Engine) runWave(ctx context.Context, ds []*directive.Directive, defaults schedule.Defaults) []*Worker {
	q := NewTaskQueue(ds)
	workers := make([]*Worker, 0, e.cfg.Threads)
	var wg sync.WaitGroup

	ctrl := &ramp.Controller{Spec: e.cfg.Ramp, Sleep: e.sleep}
	started, err := ctrl.Start(ctx, e.cfg.Threads, func(i int) {
		w := newWorker(e, ramp.ThreadName(i), q, defaults)
		workers = append(workers, w)
		wg.Add(1)
		e.metrics.WorkerStarted()
		go func() {
			defer wg.Done()
			defer e.metrics.WorkerStopped()
			w.Run(ctx)
		}()
	})
	if err != nil {
		e.log.WithField("started", started).Warn("Ramp-up cancelled")
	}

	q.DrainWait()
	wg.Wait()
	return workers
}
