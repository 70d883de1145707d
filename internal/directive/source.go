package directive

import (
	"bufio"
	"io"
	"os"

	"github.com/wesleyorama2/replay/internal/failure"
)

// Source yields the directives of one wave. Load is called again before
// every wave, so a file edited between waves is picked up.
type Source interface {
	Name() string
	Load() ([]*Directive, error)
}

// FileSource reads directives from a text file, one per line.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.Path
}

// Load reads and parses the file. Every problem is a ConfigurationError.
func (s *FileSource) Load() ([]*Directive, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &failure.ConfigurationError{Source: s.Path, Err: err}
	}
	defer f.Close()
	return Read(s.Path, f)
}

// Read parses directives from r; name identifies r in errors.
func Read(name string, r io.Reader) ([]*Directive, error) {
	var out []*Directive
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		d, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, &failure.ConfigurationError{Source: name, Line: line, Err: err}
		}
		if d == nil {
			continue
		}
		d.Source = name
		d.Line = line
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, &failure.ConfigurationError{Source: name, Err: err}
	}
	if len(out) == 0 {
		return nil, &failure.ConfigurationError{Source: name, Err: ErrEmptySource}
	}
	return out, nil
}

// StaticSource serves directives given on the command line.
type StaticSource struct {
	Lines []string
}

// Name returns a fixed label for command line directives.
func (s *StaticSource) Name() string {
	return "command line"
}

// Load parses the lines. A fresh slice of directives is built on every call.
func (s *StaticSource) Load() ([]*Directive, error) {
	out := make([]*Directive, 0, len(s.Lines))
	for i, l := range s.Lines {
		d, err := ParseLine(l)
		if err != nil {
			return nil, &failure.ConfigurationError{Source: s.Name(), Line: i + 1, Err: err}
		}
		if d == nil {
			continue
		}
		d.Source = s.Name()
		d.Line = i + 1
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, &failure.ConfigurationError{Source: s.Name(), Err: ErrEmptySource}
	}
	return out, nil
}

// Loader loads a source and resolves its test cases in one step.
type Loader struct {
	Source   Source
	Registry Resolver
}

// Load returns the resolved directives of the next wave.
func (l *Loader) Load() ([]*Directive, error) {
	ds, err := l.Source.Load()
	if err != nil {
		return nil, err
	}
	if err := Resolve(l.Source.Name(), ds, l.Registry); err != nil {
		return nil, err
	}
	return ds, nil
}
