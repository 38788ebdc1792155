package broadcast

import (
	"context"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// Recorder is an Observer that keeps every event it receives, useful in tests
// and when embedding the kernel without a WebSocket client.
type Recorder struct {
	id     string
	mu     sync.Mutex
	events []core.Event
}

// NewRecorder creates an empty recorder with a generated id.
func NewRecorder() *Recorder {
	return &Recorder{id: core.NewID()}
}

// ID implements Observer.
func (r *Recorder) ID() string { return r.id }

// Send implements Observer.
func (r *Recorder) Send(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// Filter returns the recorded events of the given type.
func (r *Recorder) Filter(eventType string) []core.Event {
	var out []core.Event
	for _, ev := range r.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
