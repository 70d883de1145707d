// Package metrics keeps live counters and latency histograms of a running
// replay, for progress reporting and the end-of-run console summary. The
// execution log stays the source of truth for reports.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates request outcomes using HDR histograms.
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms are guarded by a mutex.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// per test case breakdown
	caseHists   map[string]*hdrhistogram.Histogram
	caseHistsMu sync.Mutex

	totalRequests  atomic.Int64
	passRequests   atomic.Int64
	failedRequests atomic.Int64
	pendingRetries atomic.Int64
	authFailures   atomic.Int64
	totalBytes     atomic.Int64

	activeWorkers atomic.Int32
	wave          atomic.Int32

	startTime time.Time
	config    EngineConfig
}

// EngineConfig bounds the histograms.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64
	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64
	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist: hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		caseHists:   make(map[string]*hdrhistogram.Histogram),
		startTime:   time.Now(),
		config:      config,
	}
}

// RecordAttempt records one request attempt.
func (e *Engine) RecordAttempt(testCaseID string, duration time.Duration, pass bool, bytes int64) {
	latencyMicros := duration.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if testCaseID != "" {
		// RecordValue is not thread-safe
		e.caseHistsMu.Lock()
		hist, ok := e.caseHists[testCaseID]
		if !ok {
			hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
			e.caseHists[testCaseID] = hist
		}
		hist.RecordValue(latencyMicros)
		e.caseHistsMu.Unlock()
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if pass {
		e.passRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}
}

// RecordPendingRetry counts a backoff caused by a pending status.
func (e *Engine) RecordPendingRetry() {
	e.pendingRetries.Add(1)
}

// RecordAuthFailure counts a directive skipped because login failed.
func (e *Engine) RecordAuthFailure() {
	e.authFailures.Add(1)
}

// WorkerStarted and WorkerStopped track the number of running workers.
func (e *Engine) WorkerStarted() { e.activeWorkers.Add(1) }

// WorkerStopped is the counterpart of WorkerStarted.
func (e *Engine) WorkerStopped() { e.activeWorkers.Add(-1) }

// SetWave records the number of the wave in progress (1-based).
func (e *Engine) SetWave(n int) {
	e.wave.Store(int32(n))
}

// GetSnapshot returns a point-in-time view of all counters.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := statsOf(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalRequests.Load()
	failed := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalRequests:  total,
		PassRequests:   e.passRequests.Load(),
		FailedRequests: failed,
		PendingRetries: e.pendingRetries.Load(),
		AuthFailures:   e.authFailures.Load(),
		TotalBytes:     e.totalBytes.Load(),
		Latency:        latency,
		RPS:            rps,
		ErrorRate:      errorRate,
		ActiveWorkers:  int(e.activeWorkers.Load()),
		Wave:           int(e.wave.Load()),
		Elapsed:        elapsed,
		StartTime:      e.startTime,
		Timestamp:      time.Now(),
	}
}

// GetTestCaseStats returns latency statistics per test case, ordered by id.
func (e *Engine) GetTestCaseStats() []TestCaseStats {
	e.caseHistsMu.Lock()
	defer e.caseHistsMu.Unlock()

	out := make([]TestCaseStats, 0, len(e.caseHists))
	for id, hist := range e.caseHists {
		out = append(out, TestCaseStats{TestCaseID: id, Latency: statsOf(hist)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestCaseID < out[j].TestCaseID })
	return out
}

// Report calls fn with a fresh snapshot every interval until ctx is done.
func (e *Engine) Report(ctx context.Context, interval time.Duration, fn func(*Snapshot)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(e.GetSnapshot())
		}
	}
}

func statsOf(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests  int64         `json:"totalRequests"`
	PassRequests   int64         `json:"passRequests"`
	FailedRequests int64         `json:"failedRequests"`
	PendingRetries int64         `json:"pendingRetries"`
	AuthFailures   int64         `json:"authFailures"`
	TotalBytes     int64         `json:"totalBytes"`
	Latency        LatencyStats  `json:"latency"`
	RPS            float64       `json:"rps"`
	ErrorRate      float64       `json:"errorRate"`
	ActiveWorkers  int           `json:"activeWorkers"`
	Wave           int           `json:"wave"`
	Elapsed        time.Duration `json:"elapsed"`
	StartTime      time.Time     `json:"startTime"`
	Timestamp      time.Time     `json:"timestamp"`
}

// TestCaseStats is the latency breakdown of one test case.
type TestCaseStats struct {
	TestCaseID string       `json:"testCaseId"`
	Latency    LatencyStats `json:"latency"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}
