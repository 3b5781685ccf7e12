package sim

import (
	"time"

	"maxpower/internal/trace"
)

// Fault is an injected misbehavior of one block.
type Fault string

const (
	FaultNone Fault = ""
	// FaultStuck makes the block start but never finish.
	FaultStuck Fault = "stuck"
	// FaultBusy makes the block report activity before it was ever started.
	FaultBusy Fault = "busy"
)

// activity tracks one started operation of a block.
//
// Completion is evaluated lazily on each access: the block is finished once
// the bus clock reaches until. The first access that observes completion
// records a SubsystemCompleted event stamped with the true completion time.
type activity struct {
	name    string
	latency time.Duration
	sink    trace.Sink
	fault   Fault

	started  bool
	until    time.Duration
	reported bool
}

func (a *activity) start(now time.Duration) {
	a.started = true
	a.until = now + a.latency
	a.reported = false
}

func (a *activity) reset() {
	a.started = false
	a.reported = false
}

// running reports whether the block is actively working at now.
func (a *activity) running(now time.Duration) bool {
	if a.fault == FaultBusy {
		return true
	}
	if !a.started {
		return false
	}
	if a.fault == FaultStuck {
		return true
	}
	return now < a.until
}

// finished reports whether a started operation has completed at now.
func (a *activity) finished(now time.Duration) bool {
	if !a.started || a.running(now) {
		return false
	}
	if !a.reported {
		a.reported = true
		trace.SafeRecord(a.sink, trace.Event{
			Kind:      trace.EventSubsystemCompleted,
			Subsystem: a.name,
			Tick:      a.until,
		})
	}
	return true
}

func bit(v bool, pos uint) uint32 {
	if v {
		return 1 << pos
	}
	return 0
}
