// Package testcase holds the registry of test cases a directive can name and
// the per-invocation context handed to them.
package testcase

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wesleyorama2/replay/internal/executor"
)

// ErrUnknownTestCase is returned by Resolve for an id nobody registered.
var ErrUnknownTestCase = errors.New("unknown test case")

// Invocation is the execution context of one repeat of a directive.
type Invocation struct {
	TestCaseID string
	Params     []string
	// Parity is false on the first execution of a directive and flips on
	// every repeat.
	Parity bool
	// Token is the session token obtained for the credential in Params[0],
	// empty when the test case does not require authentication.
	Token  string
	User   string
	Tag    string
	Thread string
}

// Input renders the parameter list the way it is recorded in the execution
// log.
func (inv *Invocation) Input() string {
	return strings.Join(inv.Params, ",")
}

// Param returns the i-th parameter or "" when absent.
func (inv *Invocation) Param(i int) string {
	if i < 0 || i >= len(inv.Params) {
		return ""
	}
	return inv.Params[i]
}

// TestCase is the capability set of one registered test case.
type TestCase interface {
	ID() string
	Description() string
	// RequiresAuth reports whether a login must precede execution.
	RequiresAuth() bool
	// RetryPending reports whether a pending status is retried.
	RetryPending() bool
	// Build returns the ordered requests of one execution.
	Build(inv *Invocation) ([]*executor.Submission, error)
	// Analyze inspects the response of step i. Its verdict is advisory and
	// never changes the recorded status.
	Analyze(step int, res *executor.Result) error
}

// Registry maps test case ids to their implementations. Lookups happen once,
// when directives are loaded.
type Registry struct {
	mu    sync.RWMutex
	cases map[string]TestCase
}

// NewRegistry returns a registry holding cases.
func NewRegistry(cases ...TestCase) (*Registry, error) {
	r := &Registry{cases: make(map[string]TestCase, len(cases))}
	for _, tc := range cases {
		if err := r.Register(tc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds tc. Registering the same id twice is an error.
func (r *Registry) Register(tc TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cases == nil {
		r.cases = make(map[string]TestCase)
	}
	if _, dup := r.cases[tc.ID()]; dup {
		return fmt.Errorf("test case %s registered twice", tc.ID())
	}
	r.cases[tc.ID()] = tc
	return nil
}

// Resolve returns the test case registered under id.
func (r *Registry) Resolve(id string) (TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTestCase, id)
	}
	return tc, nil
}

// List returns every test case ordered by id.
func (r *Registry) List() []TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TestCase, 0, len(r.cases))
	for _, tc := range r.cases {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered test cases.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cases)
}
