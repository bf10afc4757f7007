package metrics

import "time"

// Phase represents a phase of the load run.
type Phase string

const (
	// PhaseInit is the initialization phase before the run starts.
	PhaseInit Phase = "init"

	// PhaseRampUp is active while worker count is growing toward target.
	PhaseRampUp Phase = "ramp-up"

	// PhaseSteady is active while worker count matches target.
	PhaseSteady Phase = "steady"

	// PhaseRampDown is active while excess workers are being stopped.
	PhaseRampDown Phase = "ramp-down"

	// PhaseDone indicates the run has completed.
	PhaseDone Phase = "done"
)

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	// TotalRequests is the total number of endpoint invocations made.
	TotalRequests int64 `json:"totalRequests"`

	// SuccessRequests is the number of successful invocations.
	SuccessRequests int64 `json:"successRequests"`

	// FailedRequests is the number of failed invocations.
	FailedRequests int64 `json:"failedRequests"`

	// TotalBytes is the total response bytes received.
	TotalBytes int64 `json:"totalBytes"`

	// WorkerStartFailures counts workers that failed to start.
	WorkerStartFailures int64 `json:"workerStartFailures"`

	// WorkerStopFailures counts workers that failed to stop cleanly.
	WorkerStopFailures int64 `json:"workerStopFailures"`

	// Latency contains latency statistics.
	Latency LatencyStats `json:"latency"`

	// RPS is requests per second over the whole run.
	RPS float64 `json:"rps"`

	// ErrorRate is the fraction of failed invocations (0.0 to 1.0).
	ErrorRate float64 `json:"errorRate"`

	// ActiveWorkers is the current number of active workers.
	ActiveWorkers int `json:"activeWorkers"`

	// CurrentPhase is the current run phase.
	CurrentPhase Phase `json:"currentPhase"`

	// Elapsed is the time since the engine was created.
	Elapsed time.Duration `json:"elapsed"`

	// StartTime is when the engine was created.
	StartTime time.Time `json:"startTime"`

	// Timestamp is when this snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
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

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase
	Timestamp time.Time
	Requests  int64
}
