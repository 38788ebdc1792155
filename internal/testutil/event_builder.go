package testutil

import (
	"time"

	"github.com/hupe1980/agentkernel/core"
)

// EventBuilder provides a fluent helper for constructing events in tests.
// Example:
//
//	ev := NewEventBuilder(core.EventTaskProgress).Progress("t1", 0.1, "started", "Initializing").Build()
//
// The timestamp defaults to a fixed instant so built events compare equal.
type EventBuilder struct {
	ev core.Event
}

// FixedTime is the default timestamp of built events.
var FixedTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// NewEventBuilder creates a builder for an event of the given type.
func NewEventBuilder(eventType string) *EventBuilder {
	return &EventBuilder{ev: core.Event{Type: eventType, Timestamp: FixedTime}}
}

// Data sets an arbitrary payload (chainable).
func (b *EventBuilder) Data(data any) *EventBuilder {
	b.ev.Data = data
	return b
}

// At overrides the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder {
	b.ev.Timestamp = ts
	return b
}

// Progress sets a task_progress payload (chainable). An empty action is
// encoded as null.
func (b *EventBuilder) Progress(taskID string, progress float64, status, action string) *EventBuilder {
	p := core.TaskProgress{TaskID: taskID, Progress: progress, Status: status}
	if action != "" {
		p.CurrentAction = &action
	}
	b.ev.Data = p
	return b
}

// Activity sets an agent_activity payload (chainable).
func (b *EventBuilder) Activity(agentID, activity string) *EventBuilder {
	b.ev.Data = core.AgentActivity{AgentID: agentID, Activity: activity, Details: map[string]any{}}
	return b
}

// Build returns the event.
func (b *EventBuilder) Build() core.Event { return b.ev }
