package report

import (
	"errors"

	"maxpower/internal/epoch"
	"maxpower/internal/subsystem"
)

// failureFromError classifies err into the persisted failure taxonomy.
// phase is used when err carries no phase of its own.
func failureFromError(err error, phase epoch.Phase) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	f, ok := epoch.AsFailure(err)
	if !ok {
		// Unknown error: not attributable to a subsystem.
		return Failure{
			FailureClass: FailureClassSystem,
			Phase:        nonEmptyOr(string(phase), string(epoch.PhaseIdle)),
			ErrorCode:    "UnknownError",
			ErrorMessage: err.Error(),
		}, nil
	}

	var sub *string
	if f.Subsystem != "" {
		s := f.Subsystem
		sub = &s
	}
	out := Failure{
		Phase:        nonEmptyOr(string(f.Phase), string(phase)),
		Subsystem:    sub,
		ErrorMessage: f.Error(),
	}
	switch {
	case errors.Is(f.Kind, epoch.ErrStagingFailure):
		out.FailureClass = FailureClassStaging
		out.ErrorCode = "StagingFailure"
		if errors.Is(err, subsystem.ErrCapacityExceeded) {
			out.ErrorCode = "CapacityExceeded"
		}
	case errors.Is(f.Kind, epoch.ErrPreconditionFailure):
		out.FailureClass = FailureClassPrecondition
		out.ErrorCode = "PreconditionFailure"
	case errors.Is(f.Kind, epoch.ErrTimeoutFailure):
		out.FailureClass = FailureClassTimeout
		out.ErrorCode = "TimeoutFailure"
	case errors.Is(f.Kind, epoch.ErrVerificationMismatch):
		out.FailureClass = FailureClassVerification
		out.ErrorCode = "VerificationMismatch"
		if errors.Is(err, subsystem.ErrNotDone) {
			out.ErrorCode = "NotDone"
		}
	default:
		out.FailureClass = FailureClassSystem
		out.ErrorCode = "UnknownFailure"
	}
	return out, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
