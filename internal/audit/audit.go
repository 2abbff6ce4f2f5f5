package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is the streamed form of a recorded security event.
type Event struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	UserID      string            `json:"user_id,omitempty"`
	Description string            `json:"description,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Success     bool              `json:"success"`
	Data        map[string]string `json:"data,omitempty"`
}

// Sink receives streamed events. Emit runs on the dispatcher goroutine, one event at a time.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc lets a plain function act as a Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// Discard accepts and forgets every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Tee fans each event out to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	targets := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			targets = append(targets, s)
		}
	}
	switch len(targets) {
	case 0:
		return Discard
	case 1:
		return targets[0]
	}
	return SinkFunc(func(ctx context.Context, event Event) {
		for _, s := range targets {
			s.Emit(ctx, event)
		}
	})
}

// StreamSink hands events to an in-process consumer over a buffered channel. A full buffer
// holds the dispatcher until the consumer reads or ctx ends.
type StreamSink struct {
	out chan Event
}

func NewStreamSink(buffer int) *StreamSink {
	if buffer < 1 {
		buffer = 1
	}
	return &StreamSink{out: make(chan Event, buffer)}
}

func (s *StreamSink) Emit(ctx context.Context, event Event) {
	select {
	case s.out <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side of the stream.
func (s *StreamSink) Events() <-chan Event {
	return s.out
}

// JSONLinesSink encodes events as newline-delimited JSON. With a type allowlist, other event
// types are skipped.
type JSONLinesSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	only map[string]struct{}
}

func NewJSONLinesSink(w io.Writer, eventTypes ...string) *JSONLinesSink {
	s := &JSONLinesSink{}
	if w != nil {
		s.enc = json.NewEncoder(w)
	}
	if len(eventTypes) > 0 {
		s.only = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			s.only[t] = struct{}{}
		}
	}
	return s
}

func (s *JSONLinesSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	if s.only != nil {
		if _, ok := s.only[event.EventType]; !ok {
			return
		}
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}
