package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/replay/internal/auth"
	"github.com/wesleyorama2/replay/internal/directive"
	"github.com/wesleyorama2/replay/internal/executor"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/schedule"
	"github.com/wesleyorama2/replay/internal/testcase"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle is the state between two directives.
	WorkerIdle WorkerState = iota
	// WorkerRunning means a directive is being repeated.
	WorkerRunning
	// WorkerDraining means the run was cancelled and the worker marks the
	// remaining directives done without executing them.
	WorkerDraining
	// WorkerTerminated means the queue was empty.
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerDraining:
		return "draining"
	case WorkerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Worker executes directives taken from a TaskQueue, one at a time. Its
// schedule is private: overrides applied by one worker never leak into
// another.
type Worker struct {
	// Name is the thread label written to the execution log (T01, T02, ...).
	Name string

	engine *Engine
	queue  *TaskQueue
	sched  *schedule.State
	auth   auth.Authenticator
	log    logrus.FieldLogger

	state      atomic.Int32
	executions atomic.Int64
	skipped    atomic.Int64
}

func newWorker(e *Engine, name string, q *TaskQueue, defaults schedule.Defaults) *Worker {
	w := &Worker{
		Name:   name,
		engine: e,
		queue:  q,
		sched:  schedule.New(defaults),
		log:    e.log.WithField("thread", name),
	}
	if e.authFor != nil {
		w.auth = e.authFor(name)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Schedule returns the worker's schedule. It must only be read once the
// worker has terminated.
func (w *Worker) Schedule() *schedule.State {
	return w.sched
}

// Executions returns the number of completed directive repeats.
func (w *Worker) Executions() int64 {
	return w.executions.Load()
}

// Skipped returns the number of directives skipped after a failed login.
func (w *Worker) Skipped() int64 {
	return w.skipped.Load()
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// Run consumes the queue until it is empty. Once ctx is done the remaining
// directives are only marked done so the wave barrier still releases.
func (w *Worker) Run(ctx context.Context) {
	defer w.setState(WorkerTerminated)
	for {
		d, ok := w.queue.Dequeue()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			w.setState(WorkerDraining)
			w.queue.Done(d)
			continue
		}
		w.setState(WorkerRunning)
		w.runDirective(ctx, d)
		w.queue.Done(d)
		w.setState(WorkerIdle)
	}
}

func (w *Worker) runDirective(ctx context.Context, d *directive.Directive) {
	e := w.engine
	w.sched.Apply(d.Override, e.now())

	log := w.log.WithFields(logrus.Fields{
		"testcase": d.TestCaseID,
		"line":     d.Line,
		"mode":     w.sched.Mode.String(),
	})

	if !w.sched.Continue(e.now(), 0) {
		log.Debug("Deadline already passed, directive not started")
		return
	}

	inv := &testcase.Invocation{
		TestCaseID: d.TestCaseID,
		Params:     d.Params,
		Tag:        d.Tag(),
		Thread:     w.Name,
	}
	if d.TestCase.RequiresAuth() {
		sess, err := auth.Resolve(ctx, w.auth, d.TestCaseID, inv.Param(0), w.sched.TokenMode)
		if err != nil {
			log.WithError(err).Warn("Login failed, skipping directive")
			e.metrics.RecordAuthFailure()
			w.skipped.Add(1)
			return
		}
		inv.User, inv.Token = sess.User, sess.Token
	}

	for done := 0; w.sched.Continue(e.now(), done); done++ {
		if err := w.pause(ctx, w.sched.Pacing); err != nil {
			return
		}
		steps, err := d.TestCase.Build(inv)
		if err != nil {
			log.WithError(err).Error("Failed to build requests, skipping directive")
			return
		}
		err = w.execute(ctx, d.TestCase, steps, log)
		w.executions.Add(1)
		inv.Parity = !inv.Parity
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Debug("Execution ended early")
		}
	}
}

// execute runs every step of one repeat. A step that does not pass stops the
// remaining steps of the repeat.
func (w *Worker) execute(ctx context.Context, tc testcase.TestCase, steps []*executor.Submission, log logrus.FieldLogger) error {
	for i, sub := range steps {
		if i > 0 {
			if err := w.pause(ctx, w.sched.Think); err != nil {
				return err
			}
		}
		res, err := w.submit(ctx, tc, sub)
		if err != nil {
			var serr *failure.ServiceError
			if errors.As(err, &serr) {
				log.WithFields(logrus.Fields{
					"status":   serr.StatusCode,
					"attempts": serr.Attempts,
					"step":     i,
				}).Warn(serr.Error())
			} else if ctx.Err() == nil {
				log.WithError(err).WithField("step", i).Warn("Request failed")
			}
			return err
		}
		if err := tc.Analyze(i, res); err != nil {
			log.WithError(err).WithField("step", i).Info("Response analysis reported a mismatch")
		}
	}
	return nil
}

// submit sends one step through the retry policy. It returns the last result
// when the step passed.
func (w *Worker) submit(ctx context.Context, tc testcase.TestCase, sub *executor.Submission) (*executor.Result, error) {
	e := w.engine
	var last *executor.Result

	out, err := e.retry.Do(ctx, tc.RetryPending(), func(ctx context.Context, n int) (int, error) {
		if n > 1 {
			e.metrics.RecordPendingRetry()
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return 0, err
			}
		}
		res, err := e.exec.Submit(ctx, sub)
		if err != nil {
			var dur time.Duration
			if res != nil {
				dur = res.Duration()
			}
			e.metrics.RecordAttempt(sub.TestCaseID, dur, false, 0)
			return 0, err
		}
		last = res
		e.metrics.RecordAttempt(sub.TestCaseID, res.Duration(), e.cfg.Classifier.IsPass(res.StatusCode), res.BodyBytes)
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	if out.Exhausted || e.cfg.Classifier.IsPending(out.StatusCode) {
		return nil, &failure.ServiceError{TestCaseID: sub.TestCaseID, StatusCode: out.StatusCode, Attempts: out.Attempts, Pending: true}
	}
	if !e.cfg.Classifier.IsPass(out.StatusCode) {
		return nil, &failure.ServiceError{TestCaseID: sub.TestCaseID, StatusCode: out.StatusCode, Attempts: out.Attempts}
	}
	return last, nil
}

func (w *Worker) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return w.engine.sleep(ctx, d)
}
