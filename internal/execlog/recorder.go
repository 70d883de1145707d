package execlog

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/replay/internal/executor"
)

// Recorder is an executor.Executor that writes one Record per Submit to a
// Writer, whether the attempt succeeded or not.
type Recorder struct {
	Next   executor.Executor
	Writer *Writer
	// Root is stripped from recorded URLs.
	Root string
	Log  logrus.FieldLogger
}

// NewRecorder wraps next. When next exposes a Root it is used for URL
// stripping.
func NewRecorder(next executor.Executor, w *Writer, log logrus.FieldLogger) *Recorder {
	r := &Recorder{Next: next, Writer: w, Log: log}
	if rooted, ok := next.(executor.Rooted); ok {
		r.Root = rooted.Root()
	}
	return r
}

// Submit forwards to Next and records the attempt. A transport failure is
// recorded with status 0.
func (r *Recorder) Submit(ctx context.Context, sub *executor.Submission) (*executor.Result, error) {
	res, err := r.Next.Submit(ctx, sub)

	rec := &Record{
		Thread:     sub.Thread,
		TestCaseID: sub.TestCaseID,
		Tag:        sub.Tag,
		Input:      sub.Input,
	}
	if res != nil {
		rec.Start = res.Start
		rec.End = res.End
		rec.Bytes = res.BodyBytes
		rec.Status = res.StatusCode
		rec.URL = res.URL
	} else {
		now := time.Now()
		rec.Start, rec.End = now, now
	}
	if rec.URL == "" {
		rec.URL = sub.Resource
	}
	if r.Root != "" {
		rec.URL = strings.TrimPrefix(rec.URL, r.Root)
	}
	rec.Duration = rec.End.Sub(rec.Start).Seconds()

	if werr := r.Writer.Write(rec); werr != nil && r.Log != nil {
		r.Log.WithError(werr).WithField("testcase", sub.TestCaseID).Error("execution record lost")
	}
	return res, err
}
