package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"maxpower/internal/epoch"
	"maxpower/internal/regmap"
	"maxpower/internal/trace"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, base
}

func sampleTrace() trace.EpochTrace {
	return trace.EpochTrace{PlanHash: "plan-1", Events: []trace.Event{
		{Seq: 1, Kind: trace.EventMarkerAsserted, Tick: 10},
		{Seq: 2, Kind: trace.EventTriggerIssued, Subsystem: "aes", Block: "aes", Offset: 0x80, Value: 1, Tick: 20},
		{Seq: 3, Kind: trace.EventMarkerCleared, Tick: 90},
	}}
}

func TestStore_SaveAndLoadRun_TraceHashNullable(t *testing.T) {
	store, base := newStore(t)
	run := Run{RunID: "run-123", PlanHash: "ph", StartTime: time.Unix(1, 2).UTC(), Cores: 1, Status: RunStatusRunning}
	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(base, "runs", "run-123", "run.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "\"trace_hash\": null") {
		t.Fatalf("expected trace_hash to be null; got: %s", string(data))
	}

	loaded, err := store.LoadRun("run-123")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.RunID != run.RunID || loaded.PlanHash != run.PlanHash || loaded.TraceHash != nil {
		t.Fatalf("loaded run mismatch: %+v", loaded)
	}
}

func TestStore_SaveRun_RejectsInvalid(t *testing.T) {
	store, _ := newStore(t)
	err := store.SaveRun(Run{RunID: "r", Status: "weird"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"plan_hash", "start_time", "cores", "invalid status"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestStore_SaveAndLoadFailure_SubsystemOptional(t *testing.T) {
	store, _ := newStore(t)
	f := Failure{FailureClass: FailureClassSystem, Phase: "Staging", ErrorCode: "UnknownError", ErrorMessage: "boom"}
	if err := store.SaveFailure("run-9", f); err != nil {
		t.Fatalf("SaveFailure: %v", err)
	}
	loaded, err := store.LoadFailure("run-9")
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if loaded.FailureClass != FailureClassSystem || loaded.Subsystem != nil || loaded.Phase != "Staging" {
		t.Fatalf("loaded failure mismatch: %+v", loaded)
	}
}

func TestStore_SaveAndLoadOutcome(t *testing.T) {
	store, _ := newStore(t)
	out := &epoch.Outcome{
		Passed:   true,
		Phase:    epoch.PhaseDone,
		Plan:     epoch.Plan{Steps: []epoch.Step{{Subsystem: "aes", Latency: 600}}},
		PlanHash: "ph",
		Window:   &epoch.Window{MarkerAsserted: 10, Triggers: []time.Duration{20}, Completion: 700, MarkerCleared: 710},
		Checks:   []epoch.Check{{Subsystem: "aes", Passed: true, Expected: "aa", Actual: "aa"}},
		Phases:   []epoch.Phase{epoch.PhaseIdle, epoch.PhaseDone},
	}
	if err := store.SaveOutcome("run-1", out); err != nil {
		t.Fatalf("SaveOutcome: %v", err)
	}
	loaded, err := store.LoadOutcome("run-1")
	if err != nil {
		t.Fatalf("LoadOutcome: %v", err)
	}
	if !loaded.Passed || loaded.Window == nil || loaded.Window.Duration() != 700 || len(loaded.Checks) != 1 {
		t.Fatalf("loaded outcome mismatch: %+v", loaded)
	}
}

func TestStore_LoadTrace_DetectsCorruption(t *testing.T) {
	store, _ := newStore(t)
	h, err := store.SaveTrace("run-1", sampleTrace())
	if err != nil {
		t.Fatalf("SaveTrace: %v", err)
	}
	if err := store.SaveRun(Run{RunID: "run-1", PlanHash: "plan-1", StartTime: time.Unix(1, 0), Cores: 1, Status: RunStatusPassed, TraceHash: &h}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	data, err := store.LoadTrace("run-1")
	if err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
	want, _ := sampleTrace().CanonicalJSON()
	if string(data) != string(want) {
		t.Fatalf("trace bytes mismatch\nexpected=%s\nactual  =%s", want, data)
	}

	if err := os.WriteFile(store.tracePath("run-1"), append(data, ' '), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.LoadTrace("run-1"); err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Fatalf("expected corruption error, got %v", err)
	}
}

func TestStore_ListRunIDs_Sorted(t *testing.T) {
	store, _ := newStore(t)
	ids, err := store.ListRunIDs()
	if err != nil || ids != nil {
		t.Fatalf("expected no runs on a fresh store, got %v / %v", ids, err)
	}
	for _, id := range []string{"b", "a", "c"} {
		if err := store.SaveFailure(id, Failure{FailureClass: FailureClassTimeout, Phase: "InEpoch", ErrorCode: "x", ErrorMessage: "y"}); err != nil {
			t.Fatalf("SaveFailure: %v", err)
		}
	}
	ids, err = store.ListRunIDs()
	if err != nil {
		t.Fatalf("ListRunIDs: %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestRecorder_FinishRun_WritesFailure(t *testing.T) {
	store, _ := newStore(t)
	rec := &Recorder{Store: store, Now: func() time.Time { return time.Unix(100, 0) }}
	id, err := rec.NewRunID()
	if err != nil || len(id) != 32 {
		t.Fatalf("NewRunID: %q %v", id, err)
	}
	run, err := rec.StartRun(id, "plan-1", 1)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	runErr := &epoch.Failure{Kind: epoch.ErrTimeoutFailure, Phase: epoch.PhaseInEpoch, Subsystem: regmap.BlockAES, Cause: errors.New("stuck")}
	out := &epoch.Outcome{Phase: epoch.PhaseFailed, FailedPhase: epoch.PhaseInEpoch, FailedSubsystem: regmap.BlockAES, PlanHash: "plan-1"}
	run, err = rec.FinishRun(run, out, runErr, sampleTrace())
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if run.Status != RunStatusFailed || run.TraceHash == nil {
		t.Fatalf("unexpected run: %+v", run)
	}

	loaded, err := store.LoadRun(id)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if loaded.Status != RunStatusFailed || *loaded.TraceHash != *run.TraceHash {
		t.Fatalf("persisted run mismatch: %+v", loaded)
	}
	f, err := store.LoadFailure(id)
	if err != nil {
		t.Fatalf("LoadFailure: %v", err)
	}
	if f.FailureClass != FailureClassTimeout || f.Subsystem == nil || *f.Subsystem != regmap.BlockAES || f.Phase != "InEpoch" {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if _, err := store.LoadTrace(id); err != nil {
		t.Fatalf("LoadTrace: %v", err)
	}
}

func TestRecorder_FinishRun_PassedHasNoFailure(t *testing.T) {
	store, _ := newStore(t)
	rec := &Recorder{Store: store}
	run, err := rec.StartRun("ok", "plan-1", 2)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	run, err = rec.FinishRun(run, &epoch.Outcome{Passed: true, Phase: epoch.PhaseDone, PlanHash: "plan-1"}, nil, sampleTrace())
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if run.Status != RunStatusPassed {
		t.Fatalf("unexpected status %s", run.Status)
	}
	if _, err := os.Stat(store.failurePath("ok")); !os.IsNotExist(err) {
		t.Fatalf("expected no failure.json, got %v", err)
	}
}

func TestRecorder_StartRun_RefusesExistingRun(t *testing.T) {
	store, _ := newStore(t)
	rec := &Recorder{Store: store}
	if err := store.SaveFailure("again", Failure{FailureClass: FailureClassVerification, Phase: "Verifying", ErrorCode: "VerificationMismatch", ErrorMessage: "kmac"}); err != nil {
		t.Fatalf("SaveFailure: %v", err)
	}
	_, err := rec.StartRun("again", "plan-1", 1)
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}
	if _, err := os.Stat(store.runPath("again")); !os.IsNotExist(err) {
		t.Fatalf("expected no run.json for the refused run, got %v", err)
	}
	if _, err := store.LoadFailure("again"); err != nil {
		t.Fatalf("earlier failure.json was touched: %v", err)
	}
}
