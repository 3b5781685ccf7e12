// Package report persists run artifacts under <baseDir>/runs/<run-id>/:
// run.json, outcome.json, trace.json and, for failed runs, failure.json.
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state recorded in run.json.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// Run is the metadata of one epoch attempt.
//
// trace_hash is null until the trace has been written.
type Run struct {
	RunID     string    `json:"run_id"`
	PlanHash  string    `json:"plan_hash"`
	StartTime time.Time `json:"start_time"`
	Cores     int       `json:"cores"`
	Status    RunStatus `json:"status"`
	TraceHash *string   `json:"trace_hash"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.PlanHash) == "" {
		errs = append(errs, errors.New("plan_hash is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.Cores < 1 {
		errs = append(errs, errors.New("cores must be >= 1"))
	}
	switch r.Status {
	case RunStatusRunning, RunStatusPassed, RunStatusFailed:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.TraceHash != nil && strings.TrimSpace(*r.TraceHash) == "" {
		errs = append(errs, errors.New("trace_hash must not be empty when provided"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// FailureClass groups failures by the phase of the epoch that raised them.
type FailureClass string

const (
	FailureClassStaging      FailureClass = "staging"
	FailureClassPrecondition FailureClass = "precondition"
	FailureClassTimeout      FailureClass = "timeout"
	FailureClassVerification FailureClass = "verification"
	FailureClassSystem       FailureClass = "system"
)

// Failure is a recorded run termination reason.
//
// subsystem is omitted when the failure is not attributable to one block.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Phase        string       `json:"phase"`
	Subsystem    *string      `json:"subsystem,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassStaging, FailureClassPrecondition, FailureClassTimeout, FailureClassVerification, FailureClassSystem:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if strings.TrimSpace(f.Phase) == "" {
		errs = append(errs, errors.New("phase is required"))
	}
	if f.Subsystem != nil && strings.TrimSpace(*f.Subsystem) == "" {
		errs = append(errs, errors.New("subsystem must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
