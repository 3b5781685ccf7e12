package taskrt

import "context"

// TaskState is the runtime execution state of a task.
//
//	PENDING, RUNNING, COMPLETED, FAILED, SKIPPED
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
)

// ExecutionState maps task name to its current state.
type ExecutionState map[string]TaskState

// Func is a task body. It terminates by returning; a non-nil error fails the
// task and every lower-priority task that has not started.
type Func func(ctx context.Context) error

// Task is a unit of cooperative work.
type Task struct {
	Name string
	// Priority orders levels; larger runs first.
	Priority int
	// StackBudget is the stack the task is allowed on a real target, in bytes.
	StackBudget int
	Fn          Func
}

// Result is the summary of one Run.
type Result struct {
	// FinalState is the terminal state of each task by name.
	FinalState ExecutionState

	// ExecutionOrder lists tasks in the order they transitioned to RUNNING.
	ExecutionOrder []string
}
