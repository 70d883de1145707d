package output

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/replay/internal/engine"
	"github.com/wesleyorama2/replay/internal/metrics"
	"github.com/wesleyorama2/replay/internal/stats"
	"github.com/wesleyorama2/replay/internal/testcase"
)

func newTestConsole(quiet bool) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewConsole(ConsoleConfig{Writer: &buf, Quiet: quiet, NoColor: true}), &buf
}

func TestConsole_PrintHeader(t *testing.T) {
	c, buf := newTestConsole(false)
	c.PrintHeader(RunInfo{
		RunID:       "run-1",
		Environment: "dev",
		BaseURL:     "http://localhost:8080",
		Source:      "directives.txt",
		Threads:     4,
		Ramp:        "2:5",
		Mode:        "count 3",
		Pacing:      500 * time.Millisecond,
		LogFile:     "out.log",
	})

	out := buf.String()
	assert.Contains(t, out, "replay - Running [run-1]")
	assert.Contains(t, out, "dev (http://localhost:8080)")
	assert.Contains(t, out, "4, ramp 2:5")
	assert.Contains(t, out, "count 3, pacing 500ms")
	assert.Contains(t, out, "out.log")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestConsole_QuietSuppressesHeaderAndProgress(t *testing.T) {
	c, buf := newTestConsole(true)
	c.PrintHeader(RunInfo{RunID: "x"})
	c.PrintProgress(&metrics.Snapshot{TotalRequests: 10})
	assert.Empty(t, buf.String())

	c.PrintSummary(&engine.Summary{Interrupted: true}, nil, "")
	assert.Equal(t, "INTERRUPTED\n", buf.String())
}

func TestConsole_PrintProgress(t *testing.T) {
	c, buf := newTestConsole(false)
	c.PrintProgress(&metrics.Snapshot{
		Elapsed:        90 * time.Second,
		Wave:           2,
		ActiveWorkers:  3,
		TotalRequests:  12345,
		FailedRequests: 5,
		ErrorRate:      0.25,
		RPS:            41.5,
		Latency:        metrics.LatencyStats{P95: 120 * time.Millisecond},
	})

	assert.Equal(t,
		"[1m 30s] Wave: 2 | Threads: 3 | Reqs: 12,345 | RPS: 41.5 | Fail: 5 (25.0%) | P95: 120ms\n",
		buf.String())
}

func TestConsole_PrintSummary(t *testing.T) {
	c, buf := newTestConsole(false)
	sum := &engine.Summary{
		Elapsed:    2 * time.Second,
		Waves:      1,
		Directives: 2,
		Executions: 6,
		Skipped:    1,
		Metrics: &metrics.Snapshot{
			TotalRequests:  8,
			PassRequests:   8,
			PendingRetries: 2,
			TotalBytes:     2048,
		},
	}
	cases := []metrics.TestCaseStats{{TestCaseID: "C01", Latency: metrics.LatencyStats{Count: 6}}}
	c.PrintSummary(sum, cases, "run.log")

	out := buf.String()
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "1 directive(s) skipped")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "2.05 KB")
	assert.Contains(t, out, "C01")
	assert.Contains(t, out, "execution log written to run.log")
}

func TestConsole_PrintScenariosAndTestCases(t *testing.T) {
	reg, err := testcase.ParseCatalog([]byte(`
testCases:
  - id: C01
    description: list orders
    auth: true
    steps:
      - method: GET
        resource: /orders
`), "catalog.yaml")
	require.NoError(t, err)

	c, buf := newTestConsole(false)
	c.PrintTestCases(reg.List())
	c.PrintScenarios(stats.Scenarios())

	out := buf.String()
	assert.Contains(t, out, "C01")
	assert.Contains(t, out, "list orders [auth]")
	assert.Contains(t, out, "100  general statistics, segregated by test case (API)")
	assert.Contains(t, out, "(URL x Tag)")
}

func TestConsole_PrintError(t *testing.T) {
	c, buf := newTestConsole(false)
	c.PrintError(errors.New("boom"))
	assert.Equal(t, "✗ boom\n", buf.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-1,000", formatNumber(-1000))

	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "1h 01m 01s", formatDuration(time.Hour+time.Minute+time.Second))

	assert.Equal(t, "0ms", formatDurationShort(0))
	assert.Equal(t, "500µs", formatDurationShort(500*time.Microsecond))
	assert.Equal(t, "1.25s", formatDurationShort(1250*time.Millisecond))

	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.50 MB", formatBytes(1_500_000))
}
