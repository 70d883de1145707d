// Package status classifies response status codes for the engine and the
// statistics pipeline.
package status

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPending is the status meaning "accepted, processing not complete".
	DefaultPending = 202

	// DefaultNotModified is counted as a pass regardless of the pass range.
	DefaultNotModified = 304
)

// Range is an inclusive range of status codes.
type Range struct {
	Min int `mapstructure:"min" yaml:"min" json:"min"`
	Max int `mapstructure:"max" yaml:"max" json:"max"`
}

// Contains reports whether code lies in the range.
func (r Range) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ParseRange parses "200-202" or a single code "200".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "-")
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, fmt.Errorf("invalid status range %q: %w", s, err)
	}
	max := min
	if found {
		max, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return Range{}, fmt.Errorf("invalid status range %q: %w", s, err)
		}
	}
	if max < min {
		return Range{}, fmt.Errorf("invalid status range %q: upper bound below lower bound", s)
	}
	return Range{Min: min, Max: max}, nil
}

// Classifier decides pass/fail and pending for a status code. It holds no
// state, so classifying the same code twice always gives the same answer.
type Classifier struct {
	Pass        Range
	NotModified int
	Pending     int
}

// DefaultClassifier passes 200-202 and 304 and treats 202 as pending. Since
// a pending code never passes, 202 only counts once it stops being pending.
func DefaultClassifier() Classifier {
	return Classifier{
		Pass:        Range{Min: 200, Max: 202},
		NotModified: DefaultNotModified,
		Pending:     DefaultPending,
	}
}

// IsPass reports whether code counts as a passed transaction. The pending
// code is never a pass, even when the pass range holds it.
func (c Classifier) IsPass(code int) bool {
	if c.IsPending(code) {
		return false
	}
	return c.Pass.Contains(code) || (c.NotModified != 0 && code == c.NotModified)
}

// IsPending reports whether code asks the caller to come back later.
func (c Classifier) IsPending(code int) bool {
	return c.Pending != 0 && code == c.Pending
}
