// Package epoch runs one maximum power epoch: every subsystem is staged ahead
// of time by concurrent staging tasks, then the orchestrator fires all of them
// back to back in latency order inside a marked window, waits for the fastest
// one and finally checks every result against its golden value.
//
// The fastest subsystem's completion is taken as the end of the epoch. This is
// a lower bound; slower subsystems may still be running when the marker drops.
package epoch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"maxpower/internal/config"
	"maxpower/internal/subsystem"
	"maxpower/internal/taskrt"
	"maxpower/internal/trace"
)

// Task priorities on the cooperative runtime. Staging always runs and joins
// before the epoch task starts.
const (
	PriorityStaging = 2
	PriorityEpoch   = 0
)

// EpochTaskName is the runtime name of the orchestrator's own task.
const EpochTaskName = "max-power-epoch"

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	Logger *zap.Logger
	Sink   trace.Sink
	// Golden overrides the built-in vectors.
	Golden *Golden
	// Staging overrides DefaultStagingTasks.
	Staging []StagingTask
	// Tasks run on the same runtime as staging and the epoch. Their priority
	// places them relative to PriorityStaging and PriorityEpoch.
	Tasks []taskrt.Task
}

// Orchestrator drives one board through one epoch. It runs once.
type Orchestrator struct {
	board    *Board
	cfg      config.Config
	logger   *zap.Logger
	sink     trace.Sink
	golden   Golden
	staging  []StagingTask
	extra    []taskrt.Task
	plan     Plan
	planHash string
	phases   *phaseMachine
	ran      atomic.Bool
}

// New checks that the staging tasks and golden results cover every subsystem
// on the board exactly once and fixes the trigger plan.
func New(board *Board, cfg config.Config, opts Options) (*Orchestrator, error) {
	if board == nil {
		return nil, errors.New("board is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = trace.NopSink{}
	}
	golden := DefaultGolden()
	if opts.Golden != nil {
		golden = opts.Golden.Clone()
	}
	staging := opts.Staging
	if staging == nil {
		staging = DefaultStagingTasks
	}

	var errs []error
	owner := make(map[string]string)
	for _, st := range staging {
		if st.Name == "" {
			errs = append(errs, errors.New("staging task name must be non-empty"))
		}
		for _, id := range st.Subsystems {
			if _, err := board.Subsystem(id); err != nil {
				errs = append(errs, fmt.Errorf("staging task %q: %w", st.Name, err))
				continue
			}
			if prev, ok := owner[id]; ok {
				errs = append(errs, fmt.Errorf("subsystem %q staged by both %q and %q", id, prev, st.Name))
				continue
			}
			owner[id] = st.Name
		}
	}
	for _, id := range board.IDs() {
		if _, ok := owner[id]; !ok {
			errs = append(errs, fmt.Errorf("subsystem %q has no staging task", id))
		}
		if _, ok := golden.Expected[id]; !ok {
			errs = append(errs, fmt.Errorf("subsystem %q has no expected result", id))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	plan, err := NewPlan(board.Timings())
	if err != nil {
		return nil, err
	}
	planHash, err := plan.Hash()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		board:    board,
		cfg:      cfg,
		logger:   logger,
		sink:     sink,
		golden:   golden,
		staging:  staging,
		extra:    opts.Tasks,
		plan:     plan,
		planHash: planHash,
		phases:   newPhaseMachine(board.clock, sink),
	}, nil
}

// Plan is the trigger order fixed by New.
func (o *Orchestrator) Plan() Plan { return o.plan }

// PlanHash identifies Plan in run artifacts.
func (o *Orchestrator) PlanHash() string { return o.planHash }

// Phase is the current phase of the epoch state machine.
func (o *Orchestrator) Phase() Phase { return o.phases.current() }

// Run configures the board, runs the staging tasks and the epoch task on a
// cooperative runtime and reports the outcome. The returned error is non-nil
// exactly when the outcome did not pass; epoch failures are *Failure.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return nil, errors.New("orchestrator already ran")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	out := &Outcome{Plan: o.plan, PlanHash: o.planHash}

	o.logger.Info("Configuring subsystems", zap.Strings("subsystems", o.board.IDs()))
	if err := o.board.configure(); err != nil {
		return o.finish(out, err)
	}
	if err := o.phases.transition(PhaseIdle, PhaseStaging); err != nil {
		return o.finish(out, err)
	}

	rt := taskrt.New(taskrt.Options{Cores: o.cfg.Cores, StackLimit: o.cfg.StackBudget, Logger: o.logger})
	for _, st := range o.staging {
		if err := rt.Spawn(taskrt.Task{
			Name:        st.Name,
			Priority:    PriorityStaging,
			StackBudget: o.cfg.StackBudget,
			Fn:          o.stagingFunc(st),
		}); err != nil {
			return o.finish(out, err)
		}
	}
	for _, t := range o.extra {
		if err := rt.Spawn(t); err != nil {
			return o.finish(out, err)
		}
	}
	if err := rt.Spawn(taskrt.Task{
		Name:        EpochTaskName,
		Priority:    PriorityEpoch,
		StackBudget: o.cfg.StackBudget,
		Fn:          func(ctx context.Context) error { return o.epoch(ctx, out) },
	}); err != nil {
		return o.finish(out, err)
	}

	res, err := rt.Run(ctx)
	if res != nil {
		out.Tasks = res.FinalState
	}
	if err == nil && res != nil && res.FinalState[EpochTaskName] != taskrt.TaskCompleted {
		err = fmt.Errorf("epoch task ended %s", res.FinalState[EpochTaskName])
	}
	return o.finish(out, err)
}

func (o *Orchestrator) finish(out *Outcome, err error) (*Outcome, error) {
	if err != nil && o.phases.current() == PhaseDone {
		// Verification already passed; Done is terminal.
		o.logger.Warn("Ignoring error after epoch completed", zap.Error(err))
		err = nil
	}
	if err == nil {
		out.Passed = true
		out.Phase = o.phases.current()
		out.Phases = o.phases.visited()
		o.logger.Info("Epoch passed", zap.String("planHash", o.planHash))
		return out, nil
	}

	failedIn := o.phases.fail()
	out.Phase = PhaseFailed
	out.Phases = o.phases.visited()
	out.FailedPhase = failedIn
	out.Message = err.Error()
	if f, ok := AsFailure(err); ok {
		out.FailedPhase = f.Phase
		out.FailedSubsystem = f.Subsystem
		out.FailureKind = f.Kind.Error()
		o.logger.Error("Epoch failed",
			zap.String("phase", string(f.Phase)),
			zap.String("subsystem", f.Subsystem),
			zap.Error(err),
		)
		return out, f
	}
	o.logger.Error("Epoch aborted", zap.String("phase", string(failedIn)), zap.Error(err))
	return out, err
}

// epoch is the body of the orchestrator task. It starts only after every
// staging task has terminated.
func (o *Orchestrator) epoch(ctx context.Context, out *Outcome) error {
	if err := o.phases.transition(PhaseStaging, PhaseReadyToTrigger); err != nil {
		return err
	}
	triggers, poll, err := o.prepare()
	if err != nil {
		return err
	}
	if err := o.phases.transition(PhaseReadyToTrigger, PhaseInEpoch); err != nil {
		return err
	}

	o.logger.Info("Entering max power epoch",
		zap.Int("triggers", len(triggers)),
		zap.String("markerBefore", o.plan.MarkerBefore()),
		zap.String("pollTarget", poll.ID()),
	)
	w := Window{Triggers: make([]time.Duration, len(triggers))}
	o.critical(triggers, poll, &w)
	out.Window = &w
	o.logger.Info("Exited max power epoch",
		zap.Duration("markerHigh", w.Duration()),
		zap.Bool("timedOut", w.TimedOut),
	)
	o.recordWindow(triggers, poll, w)

	if w.TimedOut {
		return timeoutFailure(PhaseInEpoch, poll.ID(),
			fmt.Errorf("no completion within %s: %w", o.cfg.EpochTimeout, subsystem.ErrTimeout))
	}
	if err := o.phases.transition(PhaseInEpoch, PhaseEpochComplete); err != nil {
		return err
	}
	if err := o.phases.transition(PhaseEpochComplete, PhaseVerifying); err != nil {
		return err
	}
	checks, f := o.verify(ctx)
	out.Checks = checks
	if f != nil {
		return f
	}
	return o.phases.transition(PhaseVerifying, PhaseDone)
}

// prepare checks every subsystem is staged and idle, then builds the
// trigger writes in plan order.
func (o *Orchestrator) prepare() ([]subsystem.TriggerCommand, subsystem.Adapter, error) {
	order := o.plan.Order()
	subs := make([]*Subsystem, len(order))
	for i, id := range order {
		s, err := o.board.Subsystem(id)
		if err != nil {
			return nil, nil, preconditionFailure(id, "%v", err)
		}
		if !s.Staged() {
			return nil, nil, preconditionFailure(id, "not staged")
		}
		subs[i] = s
	}

	var busy *Failure
	for _, s := range subs {
		if s.adapter.IsIdle() {
			s.state = StateIdle
			continue
		}
		s.state = StateBusy
		if busy == nil {
			busy = preconditionFailure(s.ID(), "not idle before the epoch")
		}
	}
	if busy != nil {
		return nil, nil, busy
	}

	triggers := make([]subsystem.TriggerCommand, len(subs))
	for i, s := range subs {
		cmd, err := s.adapter.PrepareTrigger()
		if err != nil {
			f := preconditionFailure(s.ID(), "prepare trigger")
			f.Cause = err
			return nil, nil, f
		}
		if cmd.Subsystem != s.ID() || cmd.Region == nil {
			return nil, nil, preconditionFailure(s.ID(), "malformed trigger %s", cmd)
		}
		s.trigger = &cmd
		triggers[i] = cmd
	}
	return triggers, subs[len(subs)-1].adapter, nil
}

// critical is the epoch itself: marker, trigger writes, busy-poll, marker.
// It only writes registers and reads the clock. Nothing here logs, records
// or yields.
func (o *Orchestrator) critical(triggers []subsystem.TriggerCommand, poll subsystem.Adapter, w *Window) {
	clock := o.board.clock
	marker := o.board.marker
	at := o.plan.MarkerIndex

	for i := range triggers {
		if i == at {
			marker.Assert()
			w.MarkerAsserted = clock.Now()
		}
		triggers[i].Issue()
		w.Triggers[i] = clock.Now()
	}

	deadline := clock.Now() + o.cfg.EpochTimeout
	for !poll.IsDone() {
		if clock.Now() >= deadline {
			w.TimedOut = true
			break
		}
	}
	w.Completion = clock.Now()
	marker.Clear()
	w.MarkerCleared = clock.Now()
}

// recordWindow writes the critical section's observations to the trace
// after the fact, stamped with the ticks captured inside it.
func (o *Orchestrator) recordWindow(triggers []subsystem.TriggerCommand, poll subsystem.Adapter, w Window) {
	for i, cmd := range triggers {
		if i == o.plan.MarkerIndex {
			trace.SafeRecord(o.sink, trace.Event{
				Kind:   trace.EventMarkerAsserted,
				Tick:   w.MarkerAsserted,
				Reason: "before " + cmd.Subsystem,
			})
		}
		trace.SafeRecord(o.sink, trace.Event{
			Kind:      trace.EventTriggerIssued,
			Subsystem: cmd.Subsystem,
			Block:     cmd.Subsystem,
			Offset:    cmd.Offset,
			Value:     cmd.Value,
			Tick:      w.Triggers[i],
		})
	}
	if !w.TimedOut {
		trace.SafeRecord(o.sink, trace.Event{
			Kind:      trace.EventCompletionObserved,
			Subsystem: poll.ID(),
			Tick:      w.Completion,
			Reason:    "poll",
		})
	}
	trace.SafeRecord(o.sink, trace.Event{Kind: trace.EventMarkerCleared, Tick: w.MarkerCleared})
}
