package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"maxpower/internal/epoch"
	"maxpower/internal/trace"
)

// Store provides persistent storage for run artifacts under:
//
//	<baseDir>/runs/<run-id>/
type Store struct {
	baseDir string
}

// NewStore returns a store rooted at baseDir. Nothing is created until the
// first save.
func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, "runs")
}

// ListRunIDs returns all run IDs currently present on disk, sorted.
func (s *Store) ListRunIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// RunDir is the directory holding one run's artifacts.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.runsRootDir(), runID)
}

// Exists reports whether a directory for runID is already present.
func (s *Store) Exists(runID string) (bool, error) {
	_, err := os.Stat(s.RunDir(runID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "run.json")
}

func (s *Store) outcomePath(runID string) string {
	return filepath.Join(s.RunDir(runID), "outcome.json")
}

func (s *Store) failurePath(runID string) string {
	return filepath.Join(s.RunDir(runID), "failure.json")
}

func (s *Store) tracePath(runID string) string {
	return filepath.Join(s.RunDir(runID), "trace.json")
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	return s.saveJSON(run.RunID, s.runPath(run.RunID), "run", run)
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	if err := readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveOutcome(runID string, out *epoch.Outcome) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if out == nil {
		return errors.New("outcome is required")
	}
	return s.saveJSON(runID, s.outcomePath(runID), "outcome", out)
}

func (s *Store) LoadOutcome(runID string) (*epoch.Outcome, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("runID is required")
	}
	var out epoch.Outcome
	if err := readJSONStrict(s.outcomePath(runID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SaveFailure(runID string, failure Failure) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	return s.saveJSON(runID, s.failurePath(runID), "failure", failure)
}

func (s *Store) LoadFailure(runID string) (Failure, error) {
	var failure Failure
	if strings.TrimSpace(runID) == "" {
		return Failure{}, errors.New("runID is required")
	}
	if err := readJSONStrict(s.failurePath(runID), &failure); err != nil {
		return Failure{}, err
	}
	if err := failure.Validate(); err != nil {
		return Failure{}, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return failure, nil
}

// SaveTrace writes the canonical trace bytes and returns their hash.
func (s *Store) SaveTrace(runID string, tr trace.EpochTrace) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", errors.New("runID is required")
	}
	data, err := tr.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}
	if err := ensureDirDurable(s.RunDir(runID), 0o755); err != nil {
		return "", fmt.Errorf("ensure run dir: %w", err)
	}
	if err := writeFileAtomicDurable(s.tracePath(runID), data, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return trace.ComputeTraceHash(data), nil
}

// LoadTrace returns the stored canonical trace bytes after checking them
// against the hash recorded in run.json.
func (s *Store) LoadTrace(runID string) ([]byte, error) {
	run, err := s.LoadRun(runID)
	if err != nil {
		return nil, err
	}
	if run.TraceHash == nil {
		return nil, fmt.Errorf("run %s has no trace", runID)
	}
	data, err := os.ReadFile(s.tracePath(runID))
	if err != nil {
		return nil, err
	}
	if got := trace.ComputeTraceHash(data); got != *run.TraceHash {
		return nil, fmt.Errorf("trace of run %s is corrupt: hash %s, expected %s", runID, got, *run.TraceHash)
	}
	return data, nil
}

func (s *Store) saveJSON(runID, path, what string, v any) error {
	if err := ensureDirDurable(s.RunDir(runID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	if err := writeFileAtomicDurable(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := fsyncDir(parent); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
