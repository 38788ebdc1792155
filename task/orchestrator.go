package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

// Progress messages emitted while a task runs.
const (
	ActionStarted   = "Initializing task processing"
	ActionCompleted = "Task completed successfully"
)

// Router resolves agent ids and runs tasks on their backing capability.
type Router interface {
	Resolve(agentID string) (agent.Route, error)
	RunTask(ctx context.Context, agentID, taskID, description string) (string, error)
}

// Broadcaster delivers task events to observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventType string, data any)
	BroadcastTaskProgress(ctx context.Context, taskID string, progress float64, status string, currentAction *string)
	BroadcastAgentActivity(ctx context.Context, agentID, activity string, details map[string]any)
}

// transitionLogger is implemented by *logging.KernelLogger.
type transitionLogger interface {
	LogTaskTransition(taskID, agentID, from, to string)
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Logger logging.Logger
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Orchestrator owns the task table. The table is guarded by a mutex; every
// mutation is a single locked step and readers always get copies. A task is
// only mutated by the CreateAndRun call that created it, so several tasks
// may run concurrently.
type Orchestrator struct {
	router Router
	hub    Broadcaster
	logger logging.Logger
	now    func() time.Time

	mu        sync.RWMutex
	tasks     []*Task
	index     map[string]*Task
	completed int
	failed    int
	started   time.Time
}

// NewOrchestrator creates an orchestrator with an empty task table.
func NewOrchestrator(router Router, hub Broadcaster, optFns ...func(o *OrchestratorOptions)) *Orchestrator {
	opts := OrchestratorOptions{
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		router:  router,
		hub:     hub,
		logger:  logging.OrNoOp(opts.Logger),
		now:     opts.Now,
		index:   make(map[string]*Task),
		started: opts.Now(),
	}
}

// CreateAndRun creates a task from req, runs it to a terminal state and
// returns the final snapshot. It fails before any task exists when the
// backing capability is unavailable; failures during processing end the task
// failed and are not returned.
func (o *Orchestrator) CreateAndRun(ctx context.Context, req Request) (Task, error) {
	req = req.withDefaults()

	route, err := o.router.Resolve(req.AgentID)
	if err != nil {
		o.logger.Warn("task.rejected", "agent_id", req.AgentID, "error", err.Error())
		return Task{}, err
	}

	now := o.now()
	t := &Task{
		ID:          core.NewID(),
		Description: req.Description,
		Status:      StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
		AgentID:     req.AgentID,
		Priority:    *req.Priority,
		Metadata: Metadata{
			ClientInfo: req.ClientInfo,
			Source:     req.Source,
			Tags:       append([]string{}, req.Tags...),
		},
	}

	o.mu.Lock()
	o.tasks = append(o.tasks, t)
	o.index[t.ID] = t
	created := t.Clone()
	o.mu.Unlock()

	o.logTransition(created, StatusPending, StatusInProgress)
	o.hub.Broadcast(ctx, core.EventTaskCreated, created)

	action := ActionStarted
	o.hub.BroadcastTaskProgress(ctx, t.ID, 0.1, "started", &action)

	if route.Known && route.Persona.Activity != "" {
		o.hub.BroadcastAgentActivity(ctx, req.AgentID, route.Persona.Activity, nil)
	}

	o.logger.Info("task.processing", "task_id", t.ID, "agent_id", req.AgentID, "backing", route.Persona.BackingName())
	result, runErr := o.run(ctx, t.ID, req.AgentID, req.Description)

	final := o.finish(t, result, runErr)
	o.logTransition(final, StatusInProgress, final.Status)

	if runErr == nil {
		action := ActionCompleted
		o.hub.BroadcastTaskProgress(ctx, final.ID, 1.0, string(StatusCompleted), &action)
	} else {
		o.logger.Error("task.failed", "task_id", final.ID, "agent_id", final.AgentID, "error", runErr.Error())
		action := "Task failed: " + runErr.Error()
		o.hub.BroadcastTaskProgress(ctx, final.ID, 1.0, string(StatusFailed), &action)
	}
	o.hub.Broadcast(ctx, core.EventTaskUpdate, final)

	return final, nil
}

func (o *Orchestrator) run(ctx context.Context, taskID, agentID, description string) (result string, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		result, err = o.router.RunTask(ctx, agentID, taskID, description)
	})
	if rec := pc.Recovered(); rec != nil {
		return "", fmt.Errorf("panic: %v", rec.Value)
	}
	return result, err
}

// finish records the terminal state of t in one locked step.
func (o *Orchestrator) finish(t *Task, result string, runErr error) Task {
	o.mu.Lock()
	defer o.mu.Unlock()

	if runErr != nil {
		msg := runErr.Error()
		t.Result = &msg
		t.Status = StatusFailed
		o.failed++
	} else {
		t.Result = &result
		t.Status = StatusCompleted
		o.completed++
	}
	t.UpdatedAt = o.now()
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	return t.Clone()
}

func (o *Orchestrator) logTransition(t Task, from, to Status) {
	if tl, ok := o.logger.(transitionLogger); ok {
		tl.LogTaskTransition(t.ID, t.AgentID, string(from), string(to))
		return
	}
	o.logger.Debug("task.transition", "task_id", t.ID, "agent_id", t.AgentID, "from", string(from), "to", string(to))
}

// List returns the tasks in creation order. A non-nil archived keeps only
// tasks whose archived flag matches.
func (o *Orchestrator) List(archived *bool) []Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		if archived != nil && t.Archived != *archived {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// Get returns the task with the given id.
func (o *Orchestrator) Get(id string) (Task, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.index[id]
	if !ok {
		return Task{}, fmt.Errorf("task %q: %w", id, core.ErrNotFound)
	}
	return t.Clone(), nil
}

// Archive marks a task archived. Status, result and agent are untouched.
func (o *Orchestrator) Archive(id string) error { return o.setArchived(id, true) }

// Unarchive clears the archived flag of a task.
func (o *Orchestrator) Unarchive(id string) error { return o.setArchived(id, false) }

func (o *Orchestrator) setArchived(id string, archived bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.index[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, core.ErrNotFound)
	}
	t.Archived = archived
	o.logger.Info("task.archived", "task_id", id, "archived", archived)
	return nil
}

// Metrics returns the completed and failed counters and the uptime.
func (o *Orchestrator) Metrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Metrics{
		TasksCompleted: o.completed,
		TasksFailed:    o.failed,
		UptimeSeconds:  o.now().Sub(o.started).Seconds(),
	}
}
