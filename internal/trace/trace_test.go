package trace

import (
	"bytes"
	"testing"
)

func TestCanonicalJSON_OrdersBySeq(t *testing.T) {
	tr := EpochTrace{
		PlanHash: "plan-abc",
		Events: []Event{
			{Seq: 2, Kind: EventMarkerAsserted, Tick: 20},
			{Seq: 1, Kind: EventRegisterWrite, Block: "aes", Offset: 0x80, Value: 1, Tick: 10},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"planHash":"plan-abc","events":[` +
		`{"seq":1,"kind":"RegisterWrite","block":"aes","offset":128,"value":1,"tickNs":10},` +
		`{"seq":2,"kind":"MarkerAsserted","tickNs":20}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
	if tr.Events[0].Seq != 2 {
		t.Fatalf("CanonicalJSON must not reorder the caller's events")
	}
}

func TestCanonicalJSON_ByteForByteStable(t *testing.T) {
	build := func() EpochTrace {
		r := NewRecorder()
		r.Record(Event{Kind: EventSubsystemStaged, Subsystem: "aes", Tick: 5})
		r.Record(Event{Kind: EventCompletionObserved, Subsystem: "aes", Tick: 9, Reason: "poll"})
		return r.Trace("p")
	}
	b1, err := build().CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := build().CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestValidate_RequiresSubsystemForAttributableEvents(t *testing.T) {
	tr := EpochTrace{PlanHash: "p", Events: []Event{{Seq: 1, Kind: EventCompletionObserved}}}
	if _, err := tr.CanonicalJSON(); err == nil {
		t.Fatalf("expected validation error for missing subsystem")
	}
	tr = EpochTrace{PlanHash: "p", Events: []Event{{Seq: 1, Kind: EventRegisterWrite}}}
	if _, err := tr.CanonicalJSON(); err == nil {
		t.Fatalf("expected validation error for missing block")
	}
	tr = EpochTrace{Events: nil}
	if _, err := tr.Hash(); err == nil {
		t.Fatalf("expected error for missing plan hash")
	}
}

func TestRecorder_AssignsMonotonicSeq(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Seq: 99, Kind: EventMarkerAsserted})
	r.Record(Event{Seq: 7, Kind: EventMarkerCleared})
	got := r.Snapshot()
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 2 {
		t.Fatalf("unexpected sequence numbers: %#v", got)
	}
}

func TestFilter_KeepsOnlyRequestedKinds(t *testing.T) {
	r := NewRecorder()
	r.Record(Event{Kind: EventMarkerAsserted})
	r.Record(Event{Kind: EventRegisterWrite, Block: "gpio"})
	r.Record(Event{Kind: EventMarkerCleared})
	got := r.Trace("p").Filter(EventMarkerAsserted, EventMarkerCleared)
	if len(got) != 2 || got[0].Kind != EventMarkerAsserted || got[1].Kind != EventMarkerCleared {
		t.Fatalf("unexpected filter result: %#v", got)
	}
}

type panickingSink struct{}

func (panickingSink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	r := NewRecorder()
	Tee{panickingSink{}, nil, r}.Record(Event{Kind: EventMarkerAsserted})
	SafeRecord(panickingSink{}, Event{Kind: EventMarkerAsserted})
	if len(r.Snapshot()) != 1 {
		t.Fatalf("expected the healthy sink to receive the event")
	}
}

func TestHash_Deterministic(t *testing.T) {
	tr := EpochTrace{PlanHash: "g", Events: []Event{{Seq: 1, Kind: EventMarkerAsserted}}}
	h1, err := tr.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("expected identical 64-char hashes, got %q / %q", h1, h2)
	}
}
