package taskrt

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTask = errors.New("invalid task")
	ErrTaskFailed  = errors.New("task failed")
)

// TaskError wraps a task definition problem or a task's own failure.
type TaskError struct {
	Kind  error
	Task  string
	Cause error
	Msg   string
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Task != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Task)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the task's own error to errors.Is/As.
func (e *TaskError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func invalidf(task string, format string, args ...any) error {
	return &TaskError{Kind: ErrInvalidTask, Task: task, Msg: fmt.Sprintf(format, args...)}
}

func failed(task string, cause error) error {
	return &TaskError{Kind: ErrTaskFailed, Task: task, Cause: cause}
}
