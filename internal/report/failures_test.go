package report

import (
	"errors"
	"fmt"
	"testing"

	"maxpower/internal/epoch"
	"maxpower/internal/subsystem"
)

func TestFailureFromError_ClassifiesEpochFailures(t *testing.T) {
	cases := []struct {
		err   error
		class FailureClass
		code  string
	}{
		{&epoch.Failure{Kind: epoch.ErrStagingFailure, Phase: epoch.PhaseStaging, Subsystem: "aes",
			Cause: fmt.Errorf("aes: %w", subsystem.ErrCapacityExceeded)}, FailureClassStaging, "CapacityExceeded"},
		{&epoch.Failure{Kind: epoch.ErrStagingFailure, Phase: epoch.PhaseIdle, Subsystem: "hmac"}, FailureClassStaging, "StagingFailure"},
		{&epoch.Failure{Kind: epoch.ErrPreconditionFailure, Phase: epoch.PhaseReadyToTrigger, Subsystem: "i2c1"}, FailureClassPrecondition, "PreconditionFailure"},
		{&epoch.Failure{Kind: epoch.ErrTimeoutFailure, Phase: epoch.PhaseInEpoch, Subsystem: "aes"}, FailureClassTimeout, "TimeoutFailure"},
		{&epoch.Failure{Kind: epoch.ErrVerificationMismatch, Phase: epoch.PhaseVerifying, Subsystem: "kmac"}, FailureClassVerification, "VerificationMismatch"},
	}
	for _, tc := range cases {
		// Failures usually arrive wrapped by the task runtime.
		f, err := failureFromError(fmt.Errorf("task failed: %w", tc.err), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.FailureClass != tc.class || f.ErrorCode != tc.code || f.Subsystem == nil {
			t.Fatalf("unexpected failure for %v: %#v", tc.err, f)
		}
		if err := f.Validate(); err != nil {
			t.Fatalf("classified failure is invalid: %v", err)
		}
	}
}

func TestFailureFromError_UnknownIsSystem(t *testing.T) {
	f, err := failureFromError(errors.New("disk on fire"), epoch.PhaseStaging)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FailureClass != FailureClassSystem || f.Phase != "Staging" || f.Subsystem != nil {
		t.Fatalf("unexpected failure: %#v", f)
	}
	if _, err := failureFromError(nil, ""); err == nil {
		t.Fatalf("expected error for nil input")
	}
}
