// Package retry implements the fibonacci backoff used while a service keeps
// answering with a pending status.
package retry

import (
	"context"
	"time"
)

// DefaultMaxTries is the attempt budget used when none is configured.
const DefaultMaxTries = 5

// Fib returns the n-th fibonacci number: 0, 1, 1, 2, 3, 5, 8, 13, 21, ...
func Fib(n int) int {
	x, y := 0, 1
	for i := 0; i < n; i++ {
		x, y = y, x+y
	}
	return x
}

// CumulativeWait is the total backoff slept by a sequence of tries that all
// came back pending: fib(1) + ... + fib(tries). 15 tries wait 1596s.
func CumulativeWait(tries int) time.Duration {
	total := 0
	for i := 1; i <= tries; i++ {
		total += Fib(i)
	}
	return time.Duration(total) * time.Second
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-clock Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt performs one try and returns the response status. n starts at 1.
// A non-nil error is a transport failure and ends the loop.
type Attempt func(ctx context.Context, n int) (int, error)

// Outcome describes how a retry loop ended.
type Outcome struct {
	StatusCode int
	Attempts   int
	// Exhausted is set when the last attempt was still pending.
	Exhausted bool
}

// Policy retries an idempotent request while its status is pending.
type Policy struct {
	MaxTries int
	// Pending is the retryable predicate evaluated against each status.
	Pending func(status int) bool
	Sleep   Sleeper
}

// New returns a Policy with the real-clock sleeper.
func New(maxTries int, pending func(int) bool) *Policy {
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	return &Policy{MaxTries: maxTries, Pending: pending, Sleep: SleepContext}
}

// Backoff is the wait after attempt n.
func (p *Policy) Backoff(n int) time.Duration {
	return time.Duration(Fib(n)) * time.Second
}

// Do runs attempt until the status is no longer pending, the budget is spent
// or an error occurs. When retryable is false exactly one attempt is made.
//
// Every pending attempt is followed by its backoff, including the last one,
// so the worst case wait after k tries is CumulativeWait(k).
func (p *Policy) Do(ctx context.Context, retryable bool, attempt Attempt) (Outcome, error) {
	maxTries := p.MaxTries
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}
	if !retryable {
		maxTries = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var out Outcome
	for n := 1; n <= maxTries; n++ {
		code, err := attempt(ctx, n)
		out.StatusCode = code
		out.Attempts = n
		if err != nil {
			return out, err
		}
		if !retryable || p.Pending == nil || !p.Pending(code) {
			return out, nil
		}
		if err := sleep(ctx, p.Backoff(n)); err != nil {
			return out, err
		}
	}
	out.Exhausted = true
	return out, nil
}
