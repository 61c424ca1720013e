// Package diag carries structured diagnostic events out of the streaming
// core: malformed frames, stale pushes, cross-session chunks, state changes
// and preview swaps. Tests subscribe to them instead of scraping log output.
package diag

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names a diagnostic event.
type EventType string

const (
	EventMalformedFrame EventType = "stream.malformed_frame"
	EventStreamError    EventType = "stream.error"
	EventStalePush      EventType = "buffer.stale_push"
	EventCrossTalk      EventType = "buffer.cross_talk"
	EventSurfaceReset   EventType = "buffer.reset"
	EventStateChange    EventType = "sandbox.state"
	EventSettled        EventType = "sandbox.settled"
	EventPreviewSwap    EventType = "preview.swap"
)

// Event is a single diagnostic record.
type Event struct {
	Type    EventType
	Session string
	Message string
	Fields  map[string]any
	Time    time.Time
}

// Sink receives diagnostic events. Implementations must not block.
type Sink interface {
	Emit(Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Event) {}

// OrNop returns s, or a no-op sink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink forwards events to a zap logger at warn level for problems and
// debug level for everything else.
type LogSink struct {
	Logger *zap.Logger
}

// Emit implements Sink.
func (l LogSink) Emit(e Event) {
	if l.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("event", string(e.Type))}
	if e.Session != "" {
		fields = append(fields, zap.String("session", e.Session))
	}
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch e.Type {
	case EventMalformedFrame, EventStreamError, EventStalePush, EventCrossTalk:
		l.Logger.Warn(e.Message, fields...)
	default:
		l.Logger.Debug(e.Message, fields...)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
