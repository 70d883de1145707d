// Package ramp staggers worker start-up in fixed-size batches.
package ramp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Spec is a "batch:intervalSeconds" ramp-up plan.
type Spec struct {
	Batch    int
	Interval time.Duration
}

// ParseSpec parses "5:20" (batches of 5, 20 seconds apart). An empty
// string yields a nil Spec, meaning every worker starts at once.
func ParseSpec(s string) (*Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b, iv, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid ramp %q: want batch:intervalSeconds", s)
	}
	batch, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil || batch <= 0 {
		return nil, fmt.Errorf("invalid ramp batch %q: must be a positive integer", b)
	}
	secs, err := strconv.Atoi(strings.TrimSpace(iv))
	if err != nil || secs < 0 {
		return nil, fmt.Errorf("invalid ramp interval %q: must be a non-negative integer", iv)
	}
	return &Spec{Batch: batch, Interval: time.Duration(secs) * time.Second}, nil
}

func (s *Spec) String() string {
	if s == nil {
		return "all at once"
	}
	return fmt.Sprintf("%d:%d", s.Batch, int(s.Interval/time.Second))
}

// Total is the time spent ramping n workers: (ceil(n/batch) - 1) * interval.
func (s *Spec) Total(n int) time.Duration {
	if s == nil || n <= 0 || s.Batch <= 0 {
		return 0
	}
	batches := (n + s.Batch - 1) / s.Batch
	return time.Duration(batches-1) * s.Interval
}

// Controller starts workers according to a Spec.
type Controller struct {
	Spec *Spec
	// Sleep waits between batches; nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Start calls start(i) for i = 0..n-1 in order, pausing Spec.Interval after
// every full batch except the last. start must not block. If ctx is done
// during a pause, Start returns the number of workers started so far and the
// context error.
func (c *Controller) Start(ctx context.Context, n int, start func(i int)) (int, error) {
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	for i := 0; i < n; i++ {
		start(i)
		last := i == n-1
		if c.Spec != nil && c.Spec.Interval > 0 && (i+1)%c.Spec.Batch == 0 && !last {
			if err := sleep(ctx, c.Spec.Interval); err != nil {
				return i + 1, err
			}
		}
	}
	return n, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ThreadName returns the name of the i-th worker (0-based): T01, T02, ...
func ThreadName(i int) string {
	return fmt.Sprintf("T%02d", i+1)
}
