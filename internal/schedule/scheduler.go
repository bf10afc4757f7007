package schedule

import "time"

// TickResult is the scheduling decision for one control-loop tick: either
// the load parameters of the current stage, or a terminal Finished signal.
type TickResult struct {
	// Finished reports that the schedule is exhausted. Once true it stays
	// true for every later tick.
	Finished bool

	// Target is the desired concurrent worker count for this tick.
	Target int

	// SpawnRate is the maximum worker start rate (workers/second).
	SpawnRate float64

	// Stage is the index of the resolved stage, for reporting.
	Stage int
}

// StageScheduler resolves the stage table against elapsed run time and
// emits one TickResult per tick.
//
// The scheduler caches the last resolved index purely as a scan
// optimization: elapsed time only moves forward, so resolution never
// revisits an earlier stage. It is owned by a single control loop and is
// not safe for concurrent use.
type StageScheduler struct {
	table *StageTable

	// Scan cursor into the table; never decreases.
	next int

	// Sticky termination flag.
	finished bool
}

// NewStageScheduler creates a scheduler over the given table.
func NewStageScheduler(table *StageTable) *StageScheduler {
	return &StageScheduler{table: table}
}

// Tick resolves the stage active at the given elapsed time.
//
// Callers must supply monotonically non-decreasing elapsed values; under
// that contract the returned stage index never decreases and Finished is
// terminal.
func (s *StageScheduler) Tick(elapsed time.Duration) TickResult {
	if s.finished {
		return TickResult{Finished: true}
	}

	for i := s.next; i < s.table.Len(); i++ {
		stage := s.table.Stage(i)
		if elapsed < stage.Boundary {
			s.next = i
			return TickResult{
				Target:    stage.Target,
				SpawnRate: stage.SpawnRate,
				Stage:     i,
			}
		}
	}

	s.finished = true
	return TickResult{Finished: true}
}

// Done reports whether the scheduler has emitted Finished.
func (s *StageScheduler) Done() bool {
	return s.finished
}

// Table returns the underlying stage table.
func (s *StageScheduler) Table() *StageTable {
	return s.table
}
