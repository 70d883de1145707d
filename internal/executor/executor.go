// Package executor defines the contract for performing one request round trip
// on behalf of a directive.
package executor

import (
	"context"
	"net/url"
	"time"
)

// Submission describes a single request attempt.
type Submission struct {
	// Resource is the path of the request relative to the service root.
	Resource string
	Method   string
	Headers  map[string]string
	Body     []byte
	Query    url.Values

	TestCaseID string
	// Input is the human readable parameter list of the invocation.
	Input string
	Tag   string
	// Thread names the worker issuing the request (T01, T02, ...).
	Thread string
	// Parity alternates between repeated executions of the same directive.
	Parity bool
}

// Result is what an Executor reports for one attempt.
type Result struct {
	StatusCode int
	// BodyBytes is the size of the response body.
	BodyBytes int64
	// URL is the fully qualified request URL.
	URL  string
	Body []byte

	Start time.Time
	End   time.Time
}

// Duration returns the elapsed time of the attempt.
func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Executor performs one round trip. Implementations must be safe for
// concurrent use and for repeated submission of the same request.
//
// A non-nil error means the request never produced a response (transport
// failure); a Result with Start/End/URL set should still be returned so the
// attempt can be recorded.
type Executor interface {
	Submit(ctx context.Context, sub *Submission) (*Result, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, sub *Submission) (*Result, error)

// Submit calls f.
func (f Func) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	return f(ctx, sub)
}

// Root returns the base URL an executor resolves resources against, when it
// has one. Used to strip the root from recorded URLs.
type Rooted interface {
	Root() string
}
