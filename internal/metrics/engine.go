// Package metrics collects latency and throughput measurements for a load
// run using HDR histograms.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects and aggregates load-run metrics.
//
// Counters use atomic operations and histograms are mutex-protected, so
// the engine is safe for concurrent use by many workers while the control
// loop reads snapshots.
type Engine struct {
	// HDR histogram for latency measurement.
	// Range: 1 microsecond to 1 hour, 3 significant figures.
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-target histograms for a per-variant latency breakdown.
	targetHists   map[string]*hdrhistogram.Histogram
	targetHistsMu sync.RWMutex

	// Atomic counters for lock-free updates.
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64

	// Worker lifecycle failure counters. These are non-fatal events; they
	// are surfaced in the summary so a stalled ramp is never silent.
	startFailures atomic.Int64
	stopFailures  atomic.Int64

	// Active worker tracking.
	activeWorkers atomic.Int32

	// Phase tracking.
	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	// Optional Prometheus collectors, mirrored from the same recording
	// path. Nil when not exporting.
	prom *Collectors

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds.
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds.
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures.
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	return &Engine{
		latencyHist:  hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		targetHists:  make(map[string]*hdrhistogram.Histogram),
		currentPhase: PhaseInit,
		phaseHistory: make([]PhaseChange, 0),
		startTime:    time.Now(),
		config:       config,
	}
}

// WithPrometheus attaches Prometheus collectors so recordings are exported
// as well as aggregated locally. Must be called before the run starts.
func (e *Engine) WithPrometheus(c *Collectors) *Engine {
	e.prom = c
	return e
}

// RecordRequest records one endpoint invocation.
//
// Parameters:
//   - duration: the invocation latency
//   - target: optional target/variant name for a per-target breakdown
//   - success: whether the invocation succeeded
//   - bytes: response bytes received
func (e *Engine) RecordRequest(duration time.Duration, target string, success bool, bytes int64) {
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

	if target != "" {
		e.recordTargetHistogram(target, latencyMicros)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	if e.prom != nil {
		e.prom.observeRequest(duration, success)
	}
}

// recordTargetHistogram records a latency in a per-target histogram.
// HDR histogram RecordValue is not thread-safe, so a lock is required.
func (e *Engine) recordTargetHistogram(name string, latencyMicros int64) {
	e.targetHistsMu.Lock()
	defer e.targetHistsMu.Unlock()

	hist, exists := e.targetHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.targetHists[name] = hist
	}
	hist.RecordValue(latencyMicros)
}

// RecordStartFailure counts a worker that failed to start.
func (e *Engine) RecordStartFailure() {
	e.startFailures.Add(1)
	if e.prom != nil {
		e.prom.observeWorkerFailure("start")
	}
}

// RecordStopFailure counts a worker that failed to stop cleanly.
func (e *Engine) RecordStopFailure() {
	e.stopFailures.Add(1)
	if e.prom != nil {
		e.prom.observeWorkerFailure("stop")
	}
}

// SetPhase updates the current run phase. No-op if unchanged.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}
	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Requests:  e.totalRequests.Load(),
	})
}

// GetPhase returns the current run phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveWorkers updates the active worker count.
func (e *Engine) SetActiveWorkers(count int) {
	e.activeWorkers.Store(int32(count))
	if e.prom != nil {
		e.prom.setActiveWorkers(count)
	}
}

// GetActiveWorkers returns the current active worker count.
func (e *Engine) GetActiveWorkers() int {
	return int(e.activeWorkers.Load())
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latencyStats := statsFromHistogram(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(totalReqs) / elapsed.Seconds()
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	return &Snapshot{
		TotalRequests:       totalReqs,
		SuccessRequests:     e.successRequests.Load(),
		FailedRequests:      failedReqs,
		TotalBytes:          e.totalBytes.Load(),
		WorkerStartFailures: e.startFailures.Load(),
		WorkerStopFailures:  e.stopFailures.Load(),
		Latency:             latencyStats,
		RPS:                 rps,
		ErrorRate:           errorRate,
		ActiveWorkers:       e.GetActiveWorkers(),
		CurrentPhase:        e.GetPhase(),
		Elapsed:             elapsed,
		StartTime:           e.startTime,
		Timestamp:           time.Now(),
	}
}

// GetTargetStats returns per-target latency statistics.
func (e *Engine) GetTargetStats() map[string]LatencyStats {
	e.targetHistsMu.RLock()
	defer e.targetHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.targetHists))
	for name, hist := range e.targetHists {
		result[name] = statsFromHistogram(hist)
	}
	return result
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

func statsFromHistogram(hist *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(hist.Min()) * time.Microsecond,
		Max:    time.Duration(hist.Max()) * time.Microsecond,
		Mean:   time.Duration(hist.Mean()) * time.Microsecond,
		StdDev: time.Duration(hist.StdDev()) * time.Microsecond,
		P50:    time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(hist.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond,
		Count:  hist.TotalCount(),
	}
}
