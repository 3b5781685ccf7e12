package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"maxpower/internal/config"
)

const (
	ExitSuccess           = 0
	ExitEpochFailure      = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// RunInvocation is the canonical description of one `maxpower run`.
//
// OutDir is cleaned and absolute. Subsystem lists are deduplicated and
// checked against the known subsystems.
type RunInvocation struct {
	ConfigPath string
	OutDir     string
	RunID      string
	LogLevel   string
	Stuck      []string
	Busy       []string
	Corrupt    []string
}

// InvocationError carries the exit code for errors found before execution.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf(format, args...)}
}

// canonicalize validates the raw flag values and resolves paths.
func (inv RunInvocation) canonicalize() (RunInvocation, error) {
	if strings.TrimSpace(inv.OutDir) == "" {
		return RunInvocation{}, invalidInvocationf("--out is required")
	}
	out, err := filepath.Abs(filepath.Clean(inv.OutDir))
	if err != nil {
		return RunInvocation{}, invalidInvocationf("--out: %v", err)
	}
	inv.OutDir = out
	if inv.ConfigPath != "" {
		p, err := filepath.Abs(filepath.Clean(inv.ConfigPath))
		if err != nil {
			return RunInvocation{}, invalidInvocationf("--config: %v", err)
		}
		inv.ConfigPath = p
	}
	if strings.ContainsAny(inv.RunID, `/\`) || inv.RunID == "." || inv.RunID == ".." {
		return RunInvocation{}, invalidInvocationf("--run-id must be a plain name (got %q)", inv.RunID)
	}
	if _, err := parseLevel(inv.LogLevel); err != nil {
		return RunInvocation{}, invalidInvocationf("--log-level: %v", err)
	}
	for _, l := range []struct {
		flag string
		ids  *[]string
	}{{"--stuck", &inv.Stuck}, {"--busy", &inv.Busy}, {"--corrupt", &inv.Corrupt}} {
		ids, err := subsystemList(*l.ids)
		if err != nil {
			return RunInvocation{}, invalidInvocationf("%s: %v", l.flag, err)
		}
		*l.ids = ids
	}
	for _, id := range inv.Stuck {
		for _, busy := range inv.Busy {
			if id == busy {
				return RunInvocation{}, invalidInvocationf("%s is passed to both --stuck and --busy", id)
			}
		}
	}
	return inv, nil
}

func subsystemList(raw []string) ([]string, error) {
	known := make(map[string]bool, len(config.SubsystemIDs))
	for _, id := range config.SubsystemIDs {
		known[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if !known[id] {
			return nil, fmt.Errorf("unknown subsystem %q (known: %s)", id, strings.Join(config.SubsystemIDs, ", "))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if err == nil {
		return ExitSuccess
	}
	return ExitInternalError
}
