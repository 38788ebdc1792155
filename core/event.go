package core

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to observers.
const (
	EventConnectionStatus = "connection_status"
	EventTaskCreated      = "task_created"
	EventTaskProgress     = "task_progress"
	EventTaskUpdate       = "task_update"
	EventAgentActivity    = "agent_activity"
	EventChatResponse     = "chat_response"
	EventPong             = "pong"
)

// Event is a fire-and-forget notification fanned out to every observer.
// After emission it should be treated as immutable. Timestamp is encoded as
// RFC 3339 (ISO-8601) by encoding/json.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType string, data any) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now()}
}

// TaskProgress is the payload of a task_progress event.
type TaskProgress struct {
	TaskID        string  `json:"task_id"`
	Progress      float64 `json:"progress"`
	Status        string  `json:"status"`
	CurrentAction *string `json:"current_action"`
}

// AgentActivity is the payload of an agent_activity event.
type AgentActivity struct {
	AgentID  string         `json:"agent_id"`
	Activity string         `json:"activity"`
	Details  map[string]any `json:"details"`
}

// ChatResponse is the payload of a chat_response event.
type ChatResponse struct {
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID generates a new unique identifier for tasks, observers and tool calls.
func NewID() string { return uuid.NewString() }
