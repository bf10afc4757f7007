package schedule

import (
	"errors"
	"time"
)

// ErrClockNotStarted is returned when elapsed time is read from a clock
// that was never started. All scheduling decisions depend on the clock, so
// callers treat this as fatal.
var ErrClockNotStarted = errors.New("run clock not started")

// Clock is the elapsed-time source for one run. Tests substitute a fake.
type Clock interface {
	Elapsed() (time.Duration, error)
}

// RunClock is the single authoritative elapsed-time source for a test run.
// It is created once at run start and never reset.
type RunClock struct {
	start time.Time
}

// StartClock creates a clock anchored at the current time.
func StartClock() *RunClock {
	return &RunClock{start: time.Now()}
}

// Elapsed returns the time since run start. The underlying reading uses
// Go's monotonic clock, so wall-clock adjustments cannot move it backward.
func (c *RunClock) Elapsed() (time.Duration, error) {
	if c == nil || c.start.IsZero() {
		return 0, ErrClockNotStarted
	}
	return time.Since(c.start), nil
}

// StartedAt returns the wall-clock time the run started.
func (c *RunClock) StartedAt() time.Time {
	return c.start
}
