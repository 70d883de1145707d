// Package output renders the console view of a replay run: the header, the
// periodic progress line and the final summary.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/replay/internal/engine"
	"github.com/wesleyorama2/replay/internal/metrics"
	"github.com/wesleyorama2/replay/internal/stats"
	"github.com/wesleyorama2/replay/internal/testcase"
)

const ruleWidth = 56

// RunInfo describes a run before it starts.
type RunInfo struct {
	RunID       string
	Environment string
	BaseURL     string
	Source      string
	Threads     int
	Ramp        string
	// Mode is a short description such as "count 3" or "duration 10m0s".
	Mode    string
	Pacing  time.Duration
	LogFile string
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
}

// Console writes human readable run output.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	scheme *ColorScheme
	quiet  bool
}

// NewConsole creates a console writer. Colors are used only on a terminal
// that supports them, unless forced.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	scheme := NoColorScheme()
	switch {
	case cfg.NoColor:
	case cfg.ForceColors:
		scheme = ForcedColorScheme()
	case isTerminal(cfg.Writer) && supportsColors():
		scheme = ForcedColorScheme()
	}
	return &Console{w: cfg.Writer, scheme: scheme, quiet: cfg.Quiet}
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(info RunInfo) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.scheme
	rule := s.Rule.Sprint(strings.Repeat("━", ruleWidth))
	c.writeln(rule)
	c.writeln(s.Title.Sprintf("replay - Running [%s]", info.RunID))
	c.writeln(rule)
	c.field("Environment", fmt.Sprintf("%s (%s)", info.Environment, info.BaseURL))
	c.field("Directives", info.Source)
	c.field("Threads", fmt.Sprintf("%d, ramp %s", info.Threads, info.Ramp))
	c.field("Schedule", fmt.Sprintf("%s, pacing %s", info.Mode, formatDurationShort(info.Pacing)))
	c.field("Execution log", info.LogFile)
	c.writeln("")
}

// PrintProgress prints a one-line status update.
func (c *Console) PrintProgress(snap *metrics.Snapshot) {
	if c.quiet || snap == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Wave: %d | Threads: %d | Reqs: %s | RPS: %.1f | Fail: %d (%.1f%%) | P95: %s",
		formatDuration(snap.Elapsed),
		snap.Wave,
		snap.ActiveWorkers,
		formatNumber(snap.TotalRequests),
		snap.RPS,
		snap.FailedRequests,
		snap.ErrorRate*100,
		formatDurationShort(snap.Latency.P95)))
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(sum *engine.Summary, cases []metrics.TestCaseStats, logFile string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.scheme
	if c.quiet {
		if sum.Interrupted {
			c.writeln(s.Warn.Sprint("INTERRUPTED"))
		} else {
			c.writeln(s.Success.Sprint("COMPLETED"))
		}
		return
	}

	state := s.Success.Sprint("Completed " + "✓")
	if sum.Interrupted {
		state = s.Warn.Sprint("Interrupted " + "⚠")
	}
	rule := s.Rule.Sprint(strings.Repeat("━", ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", s.Title.Sprint("replay"), state))
	c.writeln(rule)

	c.field("Elapsed", formatDuration(sum.Elapsed))
	c.field("Waves", fmt.Sprintf("%d (%d directives)", sum.Waves, sum.Directives))
	c.field("Executions", formatNumber(sum.Executions))
	if sum.Skipped > 0 {
		c.writeln(fmt.Sprintf("%s %s", s.WarningIcon(), s.Warn.Sprintf("%d directive(s) skipped after a failed login", sum.Skipped)))
	}

	if m := sum.Metrics; m != nil {
		c.field("Total Reqs", formatNumber(m.TotalRequests))
		passRate := 0.0
		if m.TotalRequests > 0 {
			passRate = float64(m.PassRequests) / float64(m.TotalRequests)
		}
		rate := s.Success
		if passRate < 0.99 {
			rate = s.Warn
		}
		if passRate < 0.95 {
			rate = s.Error
		}
		c.writeln(fmt.Sprintf("%-15s %s", s.Label.Sprint("Pass Rate:"), rate.Sprintf("%.1f%%", passRate*100)))
		c.field("Pending Retries", formatNumber(m.PendingRetries))
		c.field("Received", formatBytes(m.TotalBytes))
		c.writeln("")

		c.writeln(s.Title.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Latency.Max)))
	}

	if len(cases) > 0 {
		c.writeln("")
		c.writeln(s.Title.Sprint("Test Cases:"))
		for _, tc := range cases {
			c.writeln(fmt.Sprintf("  %-10s %8s reqs  avg %-8s p95 %s",
				s.Highlight.Sprint(tc.TestCaseID),
				formatNumber(tc.Latency.Count),
				formatDurationShort(tc.Latency.Mean),
				formatDurationShort(tc.Latency.P95)))
		}
	}

	if logFile != "" {
		c.writeln("")
		c.writeln(fmt.Sprintf("%s execution log written to %s", s.SuccessIcon(), s.Value.Sprint(logFile)))
	}
}

// PrintTestCases lists the registered test cases.
func (c *Console) PrintTestCases(cases []testcase.TestCase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.scheme
	c.writeln(s.Title.Sprint("Test cases:"))
	for _, tc := range cases {
		var flags []string
		if tc.RequiresAuth() {
			flags = append(flags, "auth")
		}
		if !tc.RetryPending() {
			flags = append(flags, "no-retry")
		}
		line := fmt.Sprintf("  %-10s %s", s.Highlight.Sprint(tc.ID()), tc.Description())
		if len(flags) > 0 {
			line += " " + s.Dim.Sprintf("[%s]", strings.Join(flags, ","))
		}
		c.writeln(line)
	}
}

// PrintScenarios lists the statistics scenarios.
func (c *Console) PrintScenarios(scenarios []stats.Scenario) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.scheme
	c.writeln(s.Title.Sprint("Statistics scenarios:"))
	for _, sc := range scenarios {
		c.writeln(fmt.Sprintf("  %s  %s %s", s.Highlight.Sprint(sc.ID.String()), sc.Description,
			s.Dim.Sprintf("(%s)", strings.Join(sc.Columns, " x "))))
	}
}

// PrintError prints an error line.
func (c *Console) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeln(fmt.Sprintf("%s %s", c.scheme.ErrorIcon(), c.scheme.Error.Sprint(err.Error())))
}

func (c *Console) field(label, value string) {
	c.writeln(fmt.Sprintf("%-15s %s", c.scheme.Label.Sprint(label+":"), c.scheme.Value.Sprint(value)))
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2f GB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2f MB", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2f KB", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
