// Package schedule holds the per-worker schedule that decides how often a
// directive is repeated and how long a worker pauses between requests.
package schedule

import (
	"time"

	"github.com/wesleyorama2/replay/internal/directive"
)

// Mode selects what bounds the repeats of a directive.
type Mode int32

const (
	// CountDominant repeats a directive a fixed number of times.
	CountDominant Mode = iota
	// DurationDominant repeats a directive until the deadline passes.
	DurationDominant
)

func (m Mode) String() string {
	switch m {
	case CountDominant:
		return "count"
	case DurationDominant:
		return "duration"
	default:
		return "unknown"
	}
}

// Defaults are the run-wide settings every worker starts from.
type Defaults struct {
	// Deadline is the global end of a duration-bounded run; zero means the
	// run is count-bounded.
	Deadline  time.Time
	Count     int
	Pacing    time.Duration
	Think     time.Duration
	TokenMode bool
}

// State is owned by a single worker and never shared.
type State struct {
	Mode      Mode
	Deadline  time.Time
	Count     int
	Pacing    time.Duration
	Think     time.Duration
	TokenMode bool
}

// New returns the initial state of a worker.
func New(d Defaults) *State {
	s := &State{
		Mode:      CountDominant,
		Count:     d.Count,
		Pacing:    d.Pacing,
		Think:     d.Think,
		TokenMode: d.TokenMode,
	}
	if s.Count <= 0 {
		s.Count = 1
	}
	if !d.Deadline.IsZero() {
		s.Mode = DurationDominant
		s.Deadline = d.Deadline
	}
	return s
}

// Apply merges an override into the state. Absent fields leave the state
// untouched. A duration switches to DurationDominant and wins over a count
// given in the same override.
func (s *State) Apply(o *directive.Override, now time.Time) {
	if o == nil {
		return
	}
	if o.Pacing != nil {
		s.Pacing = *o.Pacing
	}
	if o.Think != nil {
		s.Think = *o.Think
	}
	if o.TokenMode != nil {
		s.TokenMode = *o.TokenMode
	}
	switch {
	case o.Duration != nil:
		s.Deadline = now.Add(*o.Duration)
		s.Mode = DurationDominant
	case o.Count != nil:
		s.Count = *o.Count
		s.Mode = CountDominant
	}
}

// Continue reports whether another repeat should run after done repeats.
func (s *State) Continue(now time.Time, done int) bool {
	if s.Mode == DurationDominant {
		return now.Before(s.Deadline)
	}
	return done < s.Count
}
