package control

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerState represents the lifecycle state of a worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker is between iterations.
	WorkerIdle WorkerState = iota
	// WorkerRunning indicates the worker is executing an iteration.
	WorkerRunning
	// WorkerStopping indicates the worker has been requested to stop.
	WorkerStopping
	// WorkerStopped indicates the worker has fully stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerStopping:
		return "stopping"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Task is the unit of repeated work each worker executes. Task failures
// are the task's own concern (recorded in metrics); a non-nil error is
// expected only on cancellation.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// WaitTime is the randomized pause between worker iterations.
type WaitTime struct {
	Min time.Duration
	Max time.Duration
}

// DefaultWaitTime pauses 50-500ms between iterations, the think time of
// an aggressive synthetic user.
func DefaultWaitTime() WaitTime {
	return WaitTime{Min: 50 * time.Millisecond, Max: 500 * time.Millisecond}
}

func (w WaitTime) next() time.Duration {
	diff := w.Max - w.Min
	if diff <= 0 {
		return w.Min
	}
	return w.Min + time.Duration(rand.Int63n(int64(diff)))
}

// Worker is a single virtual user running its task in a loop until
// stopped. Workers are opaque to the controller; only the pool touches
// their lifecycle.
type Worker struct {
	ID int

	task Task
	wait WaitTime

	state      atomic.Int32
	iterations atomic.Int64

	stopOnce sync.Once
	doneOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newWorker(id int, task Task, wait WaitTime) *Worker {
	return &Worker{
		ID:     id,
		task:   task,
		wait:   wait,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Iterations returns the number of completed iterations.
func (w *Worker) Iterations() int64 {
	return w.iterations.Load()
}

// RequestStop signals the worker to stop after its current iteration.
func (w *Worker) RequestStop() {
	if w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerStopping)) ||
		w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerStopping)) {
		w.stopOnce.Do(func() { close(w.stopCh) })
	}
}

// WaitForStop waits for the worker to stop with a timeout.
func (w *Worker) WaitForStop(timeout time.Duration) bool {
	select {
	case <-w.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (w *Worker) markStopped() {
	w.state.Store(int32(WorkerStopped))
	w.doneOnce.Do(func() { close(w.doneCh) })
}

// run executes the task loop until stopped or cancelled.
func (w *Worker) run(ctx context.Context) {
	defer w.markStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		if st := w.State(); st == WorkerStopping || st == WorkerStopped {
			return
		}

		w.state.Store(int32(WorkerRunning))
		err := w.task.Run(ctx)
		w.iterations.Add(1)

		if ctx.Err() != nil {
			return
		}
		_ = err // task-level failures are recorded by the task itself

		// A stop may have been requested mid-iteration.
		if w.State() == WorkerStopping {
			return
		}
		w.state.Store(int32(WorkerIdle))

		if pause := w.wait.next(); pause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-time.After(pause):
			}
		}
	}
}
