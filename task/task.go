// Package task holds the task model and the orchestrator that turns task
// requests into tracked, broadcast units of work.
package task

import (
	"time"
)

// Status is the lifecycle state of a task.
type Status string

// Task states. Tasks are created in_progress and end completed or failed;
// pending is part of the wire vocabulary but never assigned.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusFailed }

// Defaults applied to task requests.
const (
	DefaultAgentID  = "assistant"
	DefaultPriority = 1
	DefaultSource   = "api"
)

// Metadata carries request provenance.
type Metadata struct {
	ClientInfo string   `json:"client_info"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags"`
}

// Task is a tracked unit of work. Result is nil while in progress and set
// once the task is terminal.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Result      *string   `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	AgentID     string    `json:"agent_id"`
	// Priority is recorded but does not influence scheduling.
	Priority int      `json:"priority"`
	Metadata Metadata `json:"metadata"`
	Archived bool     `json:"archived"`
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.Metadata.Tags != nil {
		c.Metadata.Tags = append([]string(nil), t.Metadata.Tags...)
	}
	return c
}

// Request describes a task to create. Zero values take the defaults
// agent_id "assistant", priority 1 and source "api".
type Request struct {
	Description string   `json:"description"`
	AgentID     string   `json:"agent_id,omitempty"`
	// Priority defaults to DefaultPriority only when nil; an explicit 0 is kept.
	Priority    *int     `json:"priority,omitempty"`
	Source      string   `json:"source,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ClientInfo  string   `json:"-"`
}

func (r Request) withDefaults() Request {
	if r.AgentID == "" {
		r.AgentID = DefaultAgentID
	}
	if r.Priority == nil {
		p := DefaultPriority
		r.Priority = &p
	}
	if r.Source == "" {
		r.Source = DefaultSource
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

// Metrics summarizes orchestrator activity since start.
type Metrics struct {
	TasksCompleted int     `json:"tasks_completed"`
	TasksFailed    int     `json:"tasks_failed"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}
