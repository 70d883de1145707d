package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title     *color.Color
	Rule      *color.Color
	Label     *color.Color
	Value     *color.Color
	Dim       *color.Color
	Success   *color.Color
	Warn      *color.Color
	Error     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Rule:      color.New(color.FgCyan),
		Label:     color.New(color.FgYellow),
		Value:     color.New(color.FgCyan),
		Dim:       color.New(color.Faint),
		Success:   color.New(color.FgGreen, color.Bold),
		Warn:      color.New(color.FgYellow, color.Bold),
		Error:     color.New(color.FgRed, color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// ForcedColorScheme returns the default scheme with colors enabled even when
// the process-wide detection disabled them.
func ForcedColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	s := DefaultColorScheme()
	for _, c := range s.all() {
		c.DisableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Rule, s.Label, s.Value, s.Dim, s.Success, s.Warn, s.Error, s.Highlight}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func (s *ColorScheme) SuccessIcon() string {
	return s.Success.Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func (s *ColorScheme) ErrorIcon() string {
	return s.Error.Sprint("✗")
}

// WarningIcon returns a warning symbol with appropriate color
func (s *ColorScheme) WarningIcon() string {
	return s.Warn.Sprint("⚠")
}
