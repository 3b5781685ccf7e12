package report

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"maxpower/internal/epoch"
	"maxpower/internal/trace"
)

// Recorder writes the artifacts of a run as it starts and finishes.
type Recorder struct {
	Store *Store
	// Now stamps StartTime. Defaults to time.Now.
	Now func() time.Time
}

// NewRunID returns a random 128-bit hex identifier.
func (r *Recorder) NewRunID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// ErrRunExists is returned by StartRun when the run directory is already on
// disk. Artifacts of two runs never share a directory.
var ErrRunExists = errors.New("run already exists")

// StartRun persists run.json in the running state.
func (r *Recorder) StartRun(runID, planHash string, cores int) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	exists, err := r.Store.Exists(runID)
	if err != nil {
		return Run{}, err
	}
	if exists {
		return Run{}, fmt.Errorf("%w: %s", ErrRunExists, r.Store.RunDir(runID))
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	run := Run{
		RunID:     runID,
		PlanHash:  planHash,
		StartTime: now().UTC(),
		Cores:     cores,
		Status:    RunStatusRunning,
	}
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun writes trace.json, outcome.json and, when runErr is non-nil,
// failure.json, then updates run.json with the final status and trace hash.
// Every artifact is attempted even if an earlier one fails.
func (r *Recorder) FinishRun(run Run, out *epoch.Outcome, runErr error, tr trace.EpochTrace) (Run, error) {
	if r == nil || r.Store == nil {
		return run, errors.New("Store is required")
	}
	var errs []error

	if h, err := r.Store.SaveTrace(run.RunID, tr); err != nil {
		errs = append(errs, err)
	} else {
		run.TraceHash = &h
	}
	if out != nil {
		if err := r.Store.SaveOutcome(run.RunID, out); err != nil {
			errs = append(errs, err)
		}
	}

	run.Status = RunStatusPassed
	if runErr != nil {
		run.Status = RunStatusFailed
		var phase epoch.Phase
		if out != nil {
			phase = out.FailedPhase
		}
		f, err := failureFromError(runErr, phase)
		if err == nil {
			err = r.Store.SaveFailure(run.RunID, f)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("record failure: %w", err))
		}
	}
	if err := r.Store.SaveRun(run); err != nil {
		errs = append(errs, err)
	}
	return run, errors.Join(errs...)
}
