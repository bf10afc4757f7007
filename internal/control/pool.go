package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkerStartError reports a worker that could not be started. Non-fatal:
// the ramp continues without it.
type WorkerStartError struct {
	Reason string
}

func (e *WorkerStartError) Error() string {
	return "worker start failed: " + e.Reason
}

// WorkerStopError reports a worker that could not be stopped.
type WorkerStopError struct {
	ID     int
	Reason string
}

func (e *WorkerStopError) Error() string {
	return fmt.Sprintf("worker %d stop failed: %s", e.ID, e.Reason)
}

// Pool owns the set of live workers.
//
// The pool mutates worker state on request, but the authoritative active
// count follows a single-writer discipline: workers never remove
// themselves. A finished worker reports its exit on a channel and the
// control loop folds those exits in via Reap before each reconcile.
type Pool struct {
	task Task
	wait WaitTime
	log  logrus.FieldLogger

	mu      sync.RWMutex
	workers map[int]*Worker
	closed  bool

	nextID atomic.Int32
	wg     sync.WaitGroup

	exits chan int
}

// NewPool creates a pool whose workers repeatedly execute task with the
// given wait time between iterations.
func NewPool(task Task, wait WaitTime, log logrus.FieldLogger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		task:    task,
		wait:    wait,
		log:     log,
		workers: make(map[int]*Worker),
		exits:   make(chan int, 1024),
	}
}

// StartWorker spawns one worker goroutine running the pool's task loop.
// Returns the worker ID, or a *WorkerStartError if the pool cannot accept
// more workers.
func (p *Pool) StartWorker(ctx context.Context) (int, error) {
	if p.task == nil {
		return 0, &WorkerStartError{Reason: "no task configured"}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, &WorkerStartError{Reason: "pool is draining"}
	}
	id := int(p.nextID.Add(1))
	w := newWorker(id, p.task, p.wait)
	p.workers[id] = w
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		w.run(ctx)
		p.notifyExit(id)
	}()

	return id, nil
}

// notifyExit queues an exit notification for the control loop. The worker
// state is already Stopped at this point, so a dropped notification only
// delays map cleanup; Reap sweeps stopped workers regardless.
func (p *Pool) notifyExit(id int) {
	select {
	case p.exits <- id:
	default:
	}
}

// StopWorker requests a specific worker to stop.
func (p *Pool) StopWorker(id int) error {
	p.mu.RLock()
	w, exists := p.workers[id]
	p.mu.RUnlock()

	if !exists {
		return &WorkerStopError{ID: id, Reason: "not in pool"}
	}
	w.RequestStop()
	return nil
}

// StopWorkers requests up to n workers to stop, returning the number
// signalled. Which workers stop is unspecified: the controller tracks
// counts, not identity.
func (p *Pool) StopWorkers(n int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stopped := 0
	for _, w := range p.workers {
		if stopped >= n {
			break
		}
		if st := w.State(); st != WorkerStopping && st != WorkerStopped {
			w.RequestStop()
			stopped++
		}
	}
	return stopped
}

// StopAll requests every worker to stop, returning the number signalled.
func (p *Pool) StopAll() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stopped := 0
	for _, w := range p.workers {
		if st := w.State(); st != WorkerStopping && st != WorkerStopped {
			w.RequestStop()
			stopped++
		}
	}
	return stopped
}

// Reap folds worker exits into the pool: it drains queued exit
// notifications and sweeps any stopped workers out of the map. Only the
// control loop calls Reap.
func (p *Pool) Reap() int {
	removed := 0
	for {
		select {
		case id := <-p.exits:
			p.mu.Lock()
			if _, ok := p.workers[id]; ok {
				delete(p.workers, id)
				removed++
			}
			p.mu.Unlock()
		default:
			p.mu.Lock()
			for id, w := range p.workers {
				if w.State() == WorkerStopped {
					delete(p.workers, id)
					removed++
				}
			}
			p.mu.Unlock()
			return removed
		}
	}
}

// ActiveCount returns the number of workers that are idle or running.
// Workers already winding down do not count toward the target.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, w := range p.workers {
		if st := w.State(); st == WorkerIdle || st == WorkerRunning {
			count++
		}
	}
	return count
}

// Drain stops all workers, refuses new starts, and waits up to timeout
// for the pool to empty. Returns the number of workers that did not stop
// in time.
func (p *Pool) Drain(timeout time.Duration) int {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.StopAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	remaining := 0
	for _, w := range p.workers {
		if w.State() != WorkerStopped {
			remaining++
		}
	}
	if remaining > 0 {
		p.log.WithField("workers", remaining).Warn("workers did not stop within drain timeout")
	}
	return remaining
}
