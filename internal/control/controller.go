// Package control reconciles the live worker population against the
// staged schedule and drives workers through their lifecycle.
package control

import (
	"math"
	"time"

	"github.com/surge-load/surge/internal/schedule"
)

// ActionKind identifies what the controller wants done this tick.
type ActionKind int

const (
	// ActionNone leaves the worker population unchanged.
	ActionNone ActionKind = iota

	// ActionStart starts Count new workers.
	ActionStart

	// ActionStop stops Count workers immediately.
	ActionStop

	// ActionStopAll stops every worker and terminates the run.
	ActionStopAll
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionStopAll:
		return "stop-all"
	default:
		return "unknown"
	}
}

// Action is the controller's decision for one tick.
type Action struct {
	Kind  ActionKind
	Count int
}

// Controller reconciles the active worker count against the scheduler's
// tick result. It tracks counts only, never worker identity, and holds no
// state: the decision is a pure function of its inputs.
type Controller struct{}

// Reconcile computes the adjustment for one tick.
//
// Ramp-up is bounded by the stage spawn rate: at most ceil(spawnRate*dt)
// workers start per tick, and never past the target. Ramp-down is not
// rate-limited; excess workers are stopped in one tick. A Finished tick
// stops everything.
func (Controller) Reconcile(current int, tick schedule.TickResult, dt time.Duration) Action {
	if tick.Finished {
		return Action{Kind: ActionStopAll, Count: current}
	}

	switch {
	case current < tick.Target:
		n := int(math.Ceil(tick.SpawnRate * dt.Seconds()))
		if n > tick.Target-current {
			n = tick.Target - current
		}
		if n <= 0 {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionStart, Count: n}

	case current > tick.Target:
		return Action{Kind: ActionStop, Count: current - tick.Target}

	default:
		return Action{Kind: ActionNone}
	}
}
