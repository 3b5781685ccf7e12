package epoch

import (
	"fmt"
	"sync"

	"maxpower/internal/mmio"
	"maxpower/internal/trace"
)

// Phase is the orchestrator's position in one run.
//
//	Idle -> Staging -> ReadyToTrigger -> InEpoch -> EpochComplete -> Verifying -> Done
//
// Failed is reachable from every non-terminal phase.
type Phase string

const (
	PhaseIdle           Phase = "Idle"
	PhaseStaging        Phase = "Staging"
	PhaseReadyToTrigger Phase = "ReadyToTrigger"
	PhaseInEpoch        Phase = "InEpoch"
	PhaseEpochComplete  Phase = "EpochComplete"
	PhaseVerifying      Phase = "Verifying"
	PhaseDone           Phase = "Done"
	PhaseFailed         Phase = "Failed"
)

// IsTerminal reports whether no further transition is possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

var nextPhase = map[Phase]Phase{
	PhaseIdle:           PhaseStaging,
	PhaseStaging:        PhaseReadyToTrigger,
	PhaseReadyToTrigger: PhaseInEpoch,
	PhaseInEpoch:        PhaseEpochComplete,
	PhaseEpochComplete:  PhaseVerifying,
	PhaseVerifying:      PhaseDone,
}

func isAllowedPhase(from, to Phase) bool {
	if from.IsTerminal() {
		return false
	}
	if to == PhaseFailed {
		return true
	}
	return nextPhase[from] == to
}

// phaseMachine holds the current phase and records every change.
type phaseMachine struct {
	mu      sync.Mutex
	cur     Phase
	history []Phase
	clock   mmio.Clock
	sink    trace.Sink
}

func newPhaseMachine(clock mmio.Clock, sink trace.Sink) *phaseMachine {
	return &phaseMachine{cur: PhaseIdle, history: []Phase{PhaseIdle}, clock: clock, sink: sink}
}

// transition moves from the expected phase to the next one.
func (m *phaseMachine) transition(from, to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != from {
		return fmt.Errorf("invalid phase transition: expected %s, got %s", from, m.cur)
	}
	if !isAllowedPhase(from, to) {
		return fmt.Errorf("disallowed phase transition: %s -> %s", from, to)
	}
	m.cur = to
	m.history = append(m.history, to)
	trace.SafeRecord(m.sink, trace.Event{Kind: trace.EventPhaseChanged, Tick: m.clock.Now(), Reason: string(to)})
	return nil
}

// fail moves to Failed from wherever the machine is and returns the phase it
// failed in. A machine that is already terminal is left alone.
func (m *phaseMachine) fail() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.cur
	if from.IsTerminal() {
		return from
	}
	m.cur = PhaseFailed
	m.history = append(m.history, PhaseFailed)
	trace.SafeRecord(m.sink, trace.Event{Kind: trace.EventPhaseChanged, Tick: m.clock.Now(), Reason: string(PhaseFailed)})
	return from
}

func (m *phaseMachine) current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *phaseMachine) visited() []Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Phase, len(m.history))
	copy(out, m.history)
	return out
}
