package taskrt

import (
	"fmt"
	"sort"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// Transition performs a validated transition for a single task.
//
// The caller supplies the expected prior state (from) to make races observable.
// The state map is mutated if and only if the transition is valid.
func Transition(state ExecutionState, taskName string, from, to TaskState) error {
	cur, ok := state[taskName]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", taskName)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskName, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskName, from, to)
	}
	state[taskName] = to
	return nil
}

func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskSkipped
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// SkipPending marks every still-PENDING task in names as SKIPPED, in lexical
// order. A RUNNING task in names is an invariant violation: skipping happens
// only once the level that failed has joined.
func SkipPending(state ExecutionState, names []string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		st, ok := state[name]
		if !ok {
			return fmt.Errorf("missing state for %q", name)
		}
		switch st {
		case TaskPending:
			state[name] = TaskSkipped
		case TaskRunning:
			return fmt.Errorf("invariant violation: task %q is RUNNING during failure propagation", name)
		}
	}
	return nil
}
