// Package directive reads test case invocations ("directives") from a source
// and decodes their per-directive schedule overrides.
//
// A directive line has the form
//
//	<testcase id>,<param>,<param>,...[,+a,<override>]   # comment
//
// where the optional override block follows the literal "+a" marker as the
// last field.
package directive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/testcase"
)

// OverrideMarker precedes the override block in a directive line.
const OverrideMarker = "+a"

// DefaultTag labels records of directives that carry no prefix tag.
const DefaultTag = "N"

// ErrEmptySource is returned when a source yields no directive at all.
var ErrEmptySource = errors.New("directive source holds no directives")

// Directive is one invocation of a test case. It is immutable once loaded.
type Directive struct {
	TestCaseID string
	Params     []string
	Override   *Override

	// TestCase is the registry entry resolved at load time.
	TestCase testcase.TestCase

	// Raw is the line as read, Line its 1-based position in Source.
	Raw    string
	Source string
	Line   int
}

// Tag returns the override prefix tag, or DefaultTag.
func (d *Directive) Tag() string {
	if d.Override != nil && d.Override.Tag != "" {
		return d.Override.Tag
	}
	return DefaultTag
}

func (d *Directive) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	return d.TestCaseID + "," + strings.Join(d.Params, ",")
}

// ParseLine decodes one directive line. It returns (nil, nil) for blank and
// comment lines.
func ParseLine(line string) (*Directive, error) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return nil, nil
	}

	fields := strings.Split(line, ",")
	d := &Directive{
		TestCaseID: strings.TrimSpace(fields[0]),
		Params:     fields[1:],
		Raw:        line,
	}
	if d.TestCaseID == "" {
		return nil, fmt.Errorf("missing test case id")
	}

	if n := len(d.Params); n >= 2 && strings.TrimSpace(d.Params[n-2]) == OverrideMarker {
		o, err := ParseOverride(d.Params[n-1])
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", d.Params[n-1], err)
		}
		d.Override = o
		d.Params = d.Params[:n-2]
	}
	return d, nil
}

// Resolver looks up test cases by id.
type Resolver interface {
	Resolve(id string) (testcase.TestCase, error)
}

// Resolve binds every directive to its test case. All unknown ids are
// reported together as a ConfigurationError.
func Resolve(source string, directives []*Directive, reg Resolver) error {
	errs := &failure.ValidationErrors{}
	for _, d := range directives {
		tc, err := reg.Resolve(d.TestCaseID)
		if err != nil {
			errs.Addf(fmt.Sprintf("line %d", d.Line), "%v", err)
			continue
		}
		d.TestCase = tc
	}
	if errs.HasErrors() {
		return &failure.ConfigurationError{Source: source, Err: errs}
	}
	return nil
}
