package control

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/surge-load/surge/internal/metrics"
	"github.com/surge-load/surge/internal/schedule"
)

// WorkerPool is the worker-lifecycle collaborator the control loop
// drives. *Pool is the production implementation; tests substitute fakes
// to inject start and stop failures.
type WorkerPool interface {
	StartWorker(ctx context.Context) (int, error)
	StopWorkers(n int) int
	StopAll() int
	ActiveCount() int
	Reap() int
	Drain(timeout time.Duration) int
}

// LoopConfig configures the control loop.
type LoopConfig struct {
	// TickInterval is the fixed scheduling period. Keep it at or below
	// one second so spawn-rate rounding error stays small.
	TickInterval time.Duration

	// DrainTimeout bounds the wait for workers to stop at run end.
	DrainTimeout time.Duration
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickInterval: time.Second,
		DrainTimeout: 30 * time.Second,
	}
}

// Loop is the driver that polls the stage scheduler on a fixed tick and
// feeds the result to the concurrency controller.
//
// One loop owns one scheduler, one controller, and one clock for the
// lifetime of a run; ticks are processed strictly in time order on a
// single goroutine. The loop itself never blocks on worker I/O.
type Loop struct {
	scheduler  *schedule.StageScheduler
	controller Controller
	pool       WorkerPool
	clock      schedule.Clock
	metrics    *metrics.Engine
	log        logrus.FieldLogger
	cfg        LoopConfig

	// Observable state for progress reporting.
	currentStage  atomic.Int32
	targetWorkers atomic.Int32
	activeWorkers atomic.Int32
	finished      atomic.Bool
}

// NewLoop assembles a control loop. Zero config fields fall back to
// DefaultLoopConfig values.
func NewLoop(scheduler *schedule.StageScheduler, pool WorkerPool, clock schedule.Clock,
	engine *metrics.Engine, log logrus.FieldLogger, cfg LoopConfig) *Loop {

	def := DefaultLoopConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	l := &Loop{
		scheduler: scheduler,
		pool:      pool,
		clock:     clock,
		metrics:   engine,
		log:       log,
		cfg:       cfg,
	}
	l.currentStage.Store(-1)
	return l
}

// Stats is a point-in-time view of the driver state.
type Stats struct {
	Stage         int
	TotalStages   int
	TargetWorkers int
	ActiveWorkers int
	Finished      bool
}

// Stats returns the current driver state. Safe to call from other
// goroutines while the loop runs.
func (l *Loop) Stats() Stats {
	return Stats{
		Stage:         int(l.currentStage.Load()),
		TotalStages:   l.scheduler.Table().Len(),
		TargetWorkers: int(l.targetWorkers.Load()),
		ActiveWorkers: int(l.activeWorkers.Load()),
		Finished:      l.finished.Load(),
	}
}

// Run drives the schedule to completion or cancellation. All workers are
// stopped before Run returns, on every exit path.
//
// Returns nil when the schedule is exhausted, the context error on
// cancellation, and a fatal error if the run clock fails.
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("run cancelled, stopping workers")
			return ctx.Err()

		case <-ticker.C:
			elapsed, err := l.clock.Elapsed()
			if err != nil {
				return fmt.Errorf("reading run clock: %w", err)
			}

			l.pool.Reap()
			current := l.pool.ActiveCount()

			tick := l.scheduler.Tick(elapsed)
			if tick.Finished {
				l.log.WithField("elapsed", elapsed.Round(time.Millisecond)).Info("schedule exhausted")
				return nil
			}

			if int(l.currentStage.Load()) != tick.Stage {
				l.currentStage.Store(int32(tick.Stage))
				l.log.WithFields(logrus.Fields{
					"stage":      tick.Stage,
					"target":     tick.Target,
					"spawn_rate": tick.SpawnRate,
				}).Info("entering stage")
			}

			action := l.controller.Reconcile(current, tick, l.cfg.TickInterval)
			l.apply(ctx, action)

			active := l.pool.ActiveCount()
			l.targetWorkers.Store(int32(tick.Target))
			l.activeWorkers.Store(int32(active))
			l.metrics.SetActiveWorkers(active)
			l.metrics.SetPhase(phaseFor(action, active, tick.Target))
		}
	}
}

// apply executes the controller's decision. Starts and stops are
// fire-and-forget dispatches to the pool; a failed start is counted and
// logged but never stalls the ramp.
func (l *Loop) apply(ctx context.Context, action Action) {
	switch action.Kind {
	case ActionStart:
		for i := 0; i < action.Count; i++ {
			if _, err := l.pool.StartWorker(ctx); err != nil {
				l.metrics.RecordStartFailure()
				l.log.WithError(err).Warn("worker start failed")
			}
		}
	case ActionStop, ActionStopAll:
		l.pool.StopWorkers(action.Count)
	}
}

func phaseFor(action Action, active, target int) metrics.Phase {
	switch {
	case action.Kind == ActionStop:
		return metrics.PhaseRampDown
	case active < target:
		return metrics.PhaseRampUp
	default:
		return metrics.PhaseSteady
	}
}

// shutdown drains the pool. Runs on every exit path so cancellation never
// leaks workers.
func (l *Loop) shutdown() {
	if stuck := l.pool.Drain(l.cfg.DrainTimeout); stuck > 0 {
		for i := 0; i < stuck; i++ {
			l.metrics.RecordStopFailure()
		}
	}
	l.pool.Reap()
	l.metrics.SetActiveWorkers(0)
	l.metrics.SetPhase(metrics.PhaseDone)
	l.activeWorkers.Store(0)
	l.finished.Store(true)
}
