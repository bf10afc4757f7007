// Package schedule implements the staged load schedule: an immutable
// stage table and the scheduler that resolves it against elapsed run time.
package schedule

import (
	"fmt"
	"time"
)

// Stage is one segment of the load schedule.
//
// Boundary is a cumulative end-time marker measured from run start, not a
// per-stage length: the stage is active for elapsed times in
// [previous boundary, this boundary).
type Stage struct {
	// Boundary is the elapsed time at which this stage ends.
	Boundary time.Duration

	// Target is the desired number of concurrently active workers.
	Target int

	// SpawnRate is the maximum rate (workers/second) at which new
	// workers may be started while ramping toward Target.
	SpawnRate float64

	// Name is an optional label for reporting.
	Name string
}

// ConfigurationError indicates an invalid stage table. It is fatal and is
// always detected at construction, before any worker is started.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// StageTable is an ordered, immutable sequence of stages. It is fixed at
// construction and safe for concurrent reads without locking.
type StageTable struct {
	stages []Stage
}

// NewStageTable builds a table from an ordered list of stages.
//
// The list must be non-empty, boundaries must strictly increase, targets
// must be non-negative and spawn rates positive. Violations return a
// *ConfigurationError.
func NewStageTable(stages []Stage) (*StageTable, error) {
	if len(stages) == 0 {
		return nil, &ConfigurationError{Message: "stage table is empty"}
	}

	var prev time.Duration
	for i, s := range stages {
		if s.Boundary <= prev {
			return nil, &ConfigurationError{Message: fmt.Sprintf(
				"stage %d boundary %v does not increase past %v", i, s.Boundary, prev)}
		}
		if s.Target < 0 {
			return nil, &ConfigurationError{Message: fmt.Sprintf(
				"stage %d target %d is negative", i, s.Target)}
		}
		if s.SpawnRate <= 0 {
			return nil, &ConfigurationError{Message: fmt.Sprintf(
				"stage %d spawn rate %g must be positive", i, s.SpawnRate)}
		}
		prev = s.Boundary
	}

	cp := make([]Stage, len(stages))
	copy(cp, stages)
	return &StageTable{stages: cp}, nil
}

// Resolve returns the stage active at the given elapsed time along with its
// index. The active stage is the first whose boundary is strictly greater
// than elapsed. Once elapsed reaches the final boundary, ok is false: the
// schedule is exhausted.
//
// Resolve is a pure function over the immutable table.
func (t *StageTable) Resolve(elapsed time.Duration) (stage Stage, index int, ok bool) {
	for i, s := range t.stages {
		if elapsed < s.Boundary {
			return s, i, true
		}
	}
	return Stage{}, -1, false
}

// Stage returns the stage at index i.
func (t *StageTable) Stage(i int) Stage {
	return t.stages[i]
}

// Len returns the number of stages.
func (t *StageTable) Len() int {
	return len(t.stages)
}

// TotalDuration returns the final stage boundary, i.e. the total scheduled
// run time.
func (t *StageTable) TotalDuration() time.Duration {
	return t.stages[len(t.stages)-1].Boundary
}

// MaxTarget returns the highest target concurrency across all stages.
func (t *StageTable) MaxTarget() int {
	max := 0
	for _, s := range t.stages {
		if s.Target > max {
			max = s.Target
		}
	}
	return max
}
