package epoch

import (
	"errors"
	"fmt"
)

// Failure kinds. Every one is terminal for the run.
var (
	ErrStagingFailure       = errors.New("staging failure")
	ErrPreconditionFailure  = errors.New("precondition failure")
	ErrTimeoutFailure       = errors.New("timeout failure")
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// Failure attributes a run failure to the phase it happened in and, where
// possible, to one subsystem.
type Failure struct {
	Kind      error
	Phase     Phase
	Subsystem string
	Msg       string
	Cause     error
}

func (e *Failure) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%v in %s", e.Kind, e.Phase)
	if e.Subsystem != "" {
		msg += fmt.Sprintf(" (%s)", e.Subsystem)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Failure) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

func stagingFailure(subsystem string, cause error) *Failure {
	return &Failure{Kind: ErrStagingFailure, Phase: PhaseStaging, Subsystem: subsystem, Cause: cause}
}

func preconditionFailure(subsystem, format string, args ...any) *Failure {
	return &Failure{Kind: ErrPreconditionFailure, Phase: PhaseReadyToTrigger, Subsystem: subsystem, Msg: fmt.Sprintf(format, args...)}
}

func timeoutFailure(phase Phase, subsystem string, cause error) *Failure {
	return &Failure{Kind: ErrTimeoutFailure, Phase: phase, Subsystem: subsystem, Cause: cause}
}

func mismatch(subsystem string, expected, actual []byte) *Failure {
	return &Failure{
		Kind:      ErrVerificationMismatch,
		Phase:     PhaseVerifying,
		Subsystem: subsystem,
		Msg:       fmt.Sprintf("expected %x, got %x", expected, actual),
	}
}

// AsFailure extracts the Failure carried by err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}
