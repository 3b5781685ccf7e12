package trace

import "sync"

// Sink is the minimal interface the bus, staging tasks and orchestrator depend on.
//
// Record must be inert:
//   - must not panic (implementations should guard themselves)
//   - must not return errors
//
// The caller must assume Record may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and guarantees inertness even if the sink is buggy.
// It intentionally swallows panics.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is a concurrency-safe in-memory collector.
//
// The recorder owns Seq: whatever the caller sets is overwritten with the next
// sequence number, so Seq is the total order in which events were accepted.
type Recorder struct {
	mu     sync.Mutex
	next   uint64
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.next++
	event.Seq = r.next
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds an EpochTrace from the currently recorded events.
// The returned trace is independent from the recorder (events are copied).
func (r *Recorder) Trace(planHash string) EpochTrace {
	tr := EpochTrace{PlanHash: planHash}
	tr.Events = r.Snapshot()
	tr.Canonicalize()
	return tr
}

// Tee fans each event out to every non-nil sink.
type Tee []Sink

func (t Tee) Record(event Event) {
	for _, s := range t {
		SafeRecord(s, event)
	}
}
