package memory

import (
	"context"
	"sync"
)

// Event is one recorded trigger.
type Event struct {
	Name    string
	Payload map[string]any
}

// Recorder implements ports.EventSink by keeping every event in memory.
// Err, when set, is returned from every Trigger call after recording.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Trigger records the event.
func (r *Recorder) Trigger(ctx context.Context, event string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Payload: payload})
	return r.Err
}

// Events returns the recorded events in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Content implements ports.ContentResolver over a plain map.
type Content map[string]string

// Resolve looks up key.
func (c Content) Resolve(ctx context.Context, key string) (string, bool) {
	s, ok := c[key]
	return s, ok
}
