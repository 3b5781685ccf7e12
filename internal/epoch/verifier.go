package epoch

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"maxpower/internal/subsystem"
	"maxpower/internal/taskrt"
	"maxpower/internal/trace"
)

// verify checks every subsystem in plan order, even after a failure, so one
// bad result is attributed without hiding the others. The first failing
// check decides the returned failure.
func (o *Orchestrator) verify(ctx context.Context) ([]Check, *Failure) {
	// The epoch has happened; cancelling now would only lose the results.
	ctx = context.WithoutCancel(ctx)

	var first *Failure
	checks := make([]Check, 0, len(o.plan.Steps))
	for _, id := range o.plan.Order() {
		c, f := o.check(ctx, id)
		checks = append(checks, c)
		if f != nil && first == nil {
			first = f
		}
	}
	return checks, first
}

func (o *Orchestrator) check(ctx context.Context, id string) (Check, *Failure) {
	expected := o.golden.Expected[id]
	c := Check{Subsystem: id, Expected: hex.EncodeToString(expected)}

	s, err := o.board.Subsystem(id)
	if err != nil {
		c.Error = err.Error()
		return c, &Failure{Kind: ErrVerificationMismatch, Phase: PhaseVerifying, Subsystem: id, Cause: err}
	}
	if err := o.waitDone(ctx, s.adapter); err != nil {
		c.Error = err.Error()
		return c, timeoutFailure(PhaseVerifying, id, err)
	}
	trace.SafeRecord(o.sink, trace.Event{
		Kind:      trace.EventCompletionObserved,
		Subsystem: id,
		Tick:      o.board.clock.Now(),
		Reason:    "verify",
	})

	res, err := s.adapter.ReadResult()
	if err != nil {
		c.Error = err.Error()
		return c, &Failure{Kind: ErrVerificationMismatch, Phase: PhaseVerifying, Subsystem: id, Msg: "read result", Cause: err}
	}
	c.Actual = hex.EncodeToString(res)
	if !bytes.Equal(res, expected) {
		return c, mismatch(id, expected, res)
	}
	c.Passed = true
	return c, nil
}

// waitDone polls a for completion, giving up the core between polls, until
// the result timeout elapses on the chip clock.
func (o *Orchestrator) waitDone(ctx context.Context, a subsystem.Adapter) error {
	clock := o.board.clock
	deadline := clock.Now() + o.cfg.ResultTimeout
	for !a.IsDone() {
		if clock.Now() >= deadline {
			return fmt.Errorf("%s: no completion within %s: %w", a.ID(), o.cfg.ResultTimeout, subsystem.ErrTimeout)
		}
		if err := taskrt.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}
