package epoch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"maxpower/internal/config"
)

// Step is one trigger write in plan order.
type Step struct {
	Subsystem string        `json:"subsystem"`
	Latency   time.Duration `json:"latencyNs"`
	Onset     time.Duration `json:"onsetNs"`
}

// Plan is the fixed trigger order of one epoch.
//
// Steps are sorted by descending latency so every subsystem finishes as close
// as possible to the same instant; the last step is the fastest subsystem and
// the one the orchestrator polls. The marker goes up right before
// Steps[MarkerIndex], the subsystem slowest to start drawing load. NewPlan
// only accepts profiles where that is the first step.
type Plan struct {
	Steps       []Step `json:"steps"`
	MarkerIndex int    `json:"markerIndex"`
}

// NewPlan orders the subsystems of a latency profile.
//
// Ties in latency break by subsystem ID ascending. Ties in onset pick the
// earliest position. A profile whose greatest onset is not on the first step
// is rejected, since the marker would rise after trigger writes.
func NewPlan(timings map[string]config.Timing) (Plan, error) {
	if len(timings) == 0 {
		return Plan{}, errors.New("plan needs at least one subsystem")
	}
	steps := make([]Step, 0, len(timings))
	for id, t := range timings {
		if strings.TrimSpace(id) == "" {
			return Plan{}, errors.New("subsystem id must be non-empty")
		}
		steps = append(steps, Step{Subsystem: id, Latency: t.Latency, Onset: t.Onset})
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Latency != steps[j].Latency {
			return steps[i].Latency > steps[j].Latency
		}
		return steps[i].Subsystem < steps[j].Subsystem
	})

	marker := 0
	for i, s := range steps {
		if s.Onset > steps[marker].Onset {
			marker = i
		}
	}
	if marker != 0 {
		return Plan{}, fmt.Errorf("%s has the greatest onset (%s) but triggers after %d other subsystems, starting with %s",
			steps[marker].Subsystem, steps[marker].Onset, marker, steps[0].Subsystem)
	}
	return Plan{Steps: steps, MarkerIndex: marker}, nil
}

// Order lists the subsystems in trigger order.
func (p Plan) Order() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Subsystem
	}
	return out
}

// PollTarget is the subsystem whose completion ends the epoch.
func (p Plan) PollTarget() string {
	if len(p.Steps) == 0 {
		return ""
	}
	return p.Steps[len(p.Steps)-1].Subsystem
}

// MarkerBefore is the subsystem whose trigger the marker precedes.
func (p Plan) MarkerBefore() string {
	if p.MarkerIndex < 0 || p.MarkerIndex >= len(p.Steps) {
		return ""
	}
	return p.Steps[p.MarkerIndex].Subsystem
}

// Hash is the sha256 hex of the plan's JSON encoding. Two runs with the same
// hash issued the same triggers in the same order.
func (p Plan) Hash() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (p Plan) String() string {
	var sb strings.Builder
	for i, s := range p.Steps {
		if i == p.MarkerIndex {
			sb.WriteString("marker ")
		}
		fmt.Fprintf(&sb, "%s(%s)", s.Subsystem, s.Latency)
		if i < len(p.Steps)-1 {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}
