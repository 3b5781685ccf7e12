package epoch

import (
	"time"

	"maxpower/internal/taskrt"
)

// Check is the verification result of one subsystem. Byte values are hex.
type Check struct {
	Subsystem string `json:"subsystem"`
	Passed    bool   `json:"passed"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Window is what the chip clock said about the critical section.
type Window struct {
	MarkerAsserted time.Duration   `json:"markerAssertedNs"`
	Triggers       []time.Duration `json:"triggersNs"`
	Completion     time.Duration   `json:"completionNs"`
	MarkerCleared  time.Duration   `json:"markerClearedNs"`
	TimedOut       bool            `json:"timedOut"`
}

// Duration is the time the marker was high.
func (w Window) Duration() time.Duration {
	return w.MarkerCleared - w.MarkerAsserted
}

// Outcome is the reported result of one run.
type Outcome struct {
	Passed bool  `json:"passed"`
	Phase  Phase `json:"phase"`

	// Set when the run failed.
	FailedPhase     Phase  `json:"failedPhase,omitempty"`
	FailedSubsystem string `json:"failedSubsystem,omitempty"`
	FailureKind     string `json:"failureKind,omitempty"`
	Message         string `json:"message,omitempty"`

	Plan     Plan                  `json:"plan"`
	PlanHash string                `json:"planHash"`
	Window   *Window               `json:"window,omitempty"`
	Checks   []Check               `json:"checks,omitempty"`
	Phases   []Phase               `json:"phases"`
	Tasks    taskrt.ExecutionState `json:"tasks,omitempty"`
}
