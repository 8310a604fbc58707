// Package logs carries the progress events of a run to whoever is watching:
// the process logger, an in-memory relay for HTTP clients, or a terminal UI.
package logs

import (
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelDebug   Level = "debug"
)

// Fields is the optional structured payload of an event.
type Fields map[string]any

type Event struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Extra   Fields    `json:"extra,omitempty"`
}

// Sink receives progress events. Emit must be safe for concurrent use and
// must not block on slow consumers.
type Sink interface {
	Emit(level Level, message string, extra Fields)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, message string, extra Fields)

func (f SinkFunc) Emit(level Level, message string, extra Fields) { f(level, message, extra) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Level, string, Fields) {})

type tee []Sink

func (t tee) Emit(level Level, message string, extra Fields) {
	for _, s := range t {
		s.Emit(level, message, extra)
	}
}

// Tee sends each event to every non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Recorder keeps every event in memory. Handy in tests and for the plain CLI output.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(level Level, message string, extra Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Time: time.Now().UTC(), Level: level, Message: message, Extra: extra})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the message of every recorded event in order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Message
	}
	return out
}
