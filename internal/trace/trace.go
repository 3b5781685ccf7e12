package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// EpochTrace is the ordered record of everything observable during one run:
// register writes issued on the bus, staging completions, marker edges and the
// orchestrator's completion observation.
//
// Unlike a wall-clock log, Tick values come from the chip clock, so a trace of
// a simulated run is byte-for-byte reproducible.
//
// Canonical representation:
//   - Events are ordered by Seq (the order in which the recorder accepted them).
//   - JSON serialization uses a custom marshaler to fix field order and omit absent optional fields.
type EpochTrace struct {
	PlanHash string
	Events   []Event
}

// EventKind is the stable discriminator for Event.
// The string values are part of the trace's canonical bytes; do not rename.
type EventKind string

const (
	EventRegisterWrite      EventKind = "RegisterWrite"
	EventSubsystemStaged    EventKind = "SubsystemStaged"
	EventTriggerIssued      EventKind = "TriggerIssued"
	EventMarkerAsserted     EventKind = "MarkerAsserted"
	EventMarkerCleared      EventKind = "MarkerCleared"
	EventCompletionObserved EventKind = "CompletionObserved"
	EventSubsystemCompleted EventKind = "SubsystemCompleted"
	EventPhaseChanged       EventKind = "PhaseChanged"
)

// Event is a single observation.
//
// Block and Offset are set for register-level events. Subsystem is set when the
// event is attributable to one subsystem. Tick is the chip clock at the moment
// of the observation.
type Event struct {
	Seq       uint64
	Kind      EventKind
	Subsystem string
	Block     string
	Offset    uint32
	Value     uint32
	Tick      time.Duration
	Reason    string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *EpochTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.PlanHash == "" {
		return errors.New("planHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Kind == EventRegisterWrite && e.Block == "" {
			return fmt.Errorf("events[%d].block is required for kind %q", i, e.Kind)
		}
		if needsSubsystem(e.Kind) && e.Subsystem == "" {
			return fmt.Errorf("events[%d].subsystem is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

func needsSubsystem(kind EventKind) bool {
	switch kind {
	case EventSubsystemStaged, EventTriggerIssued, EventCompletionObserved, EventSubsystemCompleted:
		return true
	default:
		return false
	}
}

// Canonicalize sorts events by sequence number.
func (t *EpochTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Seq < t.Events[j].Seq
	})
}

// Filter returns the events of the given kinds, in canonical order.
func (t EpochTrace) Filter(kinds ...EventKind) []Event {
	want := make(map[EventKind]struct{}, len(kinds))
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	out := make([]Event, 0)
	for _, e := range t.Events {
		if _, ok := want[e.Kind]; ok {
			out = append(out, e)
		}
	}
	return out
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t EpochTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := EpochTrace{PlanHash: t.PlanHash}
	copyTrace.Events = make([]Event, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t EpochTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON ensures canonical field ordering.
func (t EpochTrace) MarshalJSON() ([]byte, error) {
	if t.PlanHash == "" {
		return nil, errors.New("planHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString("{\"planHash\":")
	ph, _ := json.Marshal(t.PlanHash)
	buf.Write(ph)

	buf.WriteString(",\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON ensures canonical field ordering and omission of empty optional fields.
// Offset and Value are only emitted for register-level events.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString("{\"seq\":")
	buf.WriteString(strconv.FormatUint(e.Seq, 10))

	buf.WriteString(",\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.Subsystem != "" {
		buf.WriteString(",\"subsystem\":")
		sb, _ := json.Marshal(e.Subsystem)
		buf.Write(sb)
	}
	if e.Block != "" {
		buf.WriteString(",\"block\":")
		bb, _ := json.Marshal(e.Block)
		buf.Write(bb)
		buf.WriteString(",\"offset\":")
		buf.WriteString(strconv.FormatUint(uint64(e.Offset), 10))
		buf.WriteString(",\"value\":")
		buf.WriteString(strconv.FormatUint(uint64(e.Value), 10))
	}

	buf.WriteString(",\"tickNs\":")
	buf.WriteString(strconv.FormatInt(int64(e.Tick), 10))

	if e.Reason != "" {
		buf.WriteString(",\"reason\":")
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
