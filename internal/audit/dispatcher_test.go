package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	seen    []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.seen = append(s.seen, e)
	s.mu.Unlock()
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink failure") }

func TestDispatcherDeliversToStreamSink(t *testing.T) {
	sink := NewStreamSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{ID: "e1", EventType: "LoginSucceeded"})

	select {
	case got := <-sink.Events():
		if got.ID != "e1" {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{ID: "e"})
	}
	if d.Stats().Dropped == 0 {
		t.Fatal("expected dropped events with a stalled sink")
	}

	close(sink.release)
	d.Close()
	st := d.Stats()
	if st.Delivered+st.Dropped != 10 {
		t.Fatalf("expected every event delivered or dropped, got %+v", st)
	}
	if int(st.Delivered) != len(sink.seen) {
		t.Fatalf("delivered=%d but sink saw %d", st.Delivered, len(sink.seen))
	}
}

func TestDispatcherCountsCancelledEmitAsDropped(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	// One event is held by the sink and one fills the buffer.
	d.Emit(context.Background(), Event{ID: "a"})
	d.Emit(context.Background(), Event{ID: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{ID: "c"})

	close(sink.release)
	d.Close()
	if st := d.Stats(); st.Dropped != 1 || st.Delivered != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{ID: "a"})
	d.Emit(context.Background(), Event{ID: "b"})
	d.Close()

	if st := d.Stats(); st.SinkPanics != 2 || st.Delivered != 0 {
		t.Fatalf("expected two recovered panics, got %+v", st)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, Discard)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Stats() != (Stats{}) {
		t.Fatal("expected nil dispatcher to report zero")
	}
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	var n int
	d := NewDispatcher(Config{Enabled: true, BufferSize: 2}, SinkFunc(func(context.Context, Event) { n++ }))
	d.Emit(context.Background(), Event{ID: "before"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{ID: "after"})

	if n != 1 || d.Stats().Delivered != 1 {
		t.Fatalf("expected only the pre-close event, sink saw %d", n)
	}
}

func TestJSONLinesSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)
	sink.Emit(context.Background(), Event{ID: "x", EventType: "LockedOut", UserID: "u1"})
	sink.Emit(context.Background(), Event{ID: "y", EventType: "LoginFailed"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.EventType != "LockedOut" || decoded.UserID != "u1" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestJSONLinesSinkFiltersTypes(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf, "LockedOut", "SuspiciousActivity")
	sink.Emit(context.Background(), Event{ID: "1", EventType: "LoginSucceeded"})
	sink.Emit(context.Background(), Event{ID: "2", EventType: "LockedOut"})
	sink.Emit(context.Background(), Event{ID: "3", EventType: "LoginFailed"})

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 || !strings.Contains(out, `"id":"2"`) {
		t.Fatalf("expected only the lockout event, got %q", out)
	}

	NewJSONLinesSink(nil).Emit(context.Background(), Event{ID: "ignored"})
}

func TestTeeFansOut(t *testing.T) {
	var a, b []string
	sink := Tee(
		SinkFunc(func(_ context.Context, e Event) { a = append(a, e.ID) }),
		nil,
		SinkFunc(func(_ context.Context, e Event) { b = append(b, e.ID) }),
	)
	sink.Emit(context.Background(), Event{ID: "e1"})
	sink.Emit(context.Background(), Event{ID: "e2"})

	if strings.Join(a, ",") != "e1,e2" || strings.Join(b, ",") != "e1,e2" {
		t.Fatalf("unexpected fan-out a=%v b=%v", a, b)
	}
	Tee(nil, nil).Emit(context.Background(), Event{ID: "e3"})
	if len(a) != 2 {
		t.Fatal("empty tee reached a sink")
	}
}
