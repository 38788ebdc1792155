// Package broadcast fans typed events out to every connected observer.
//
// Delivery is best effort: an observer that fails a single send is dropped
// and the broadcast continues with the rest. Callers of Broadcast never see
// delivery errors.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 5 * time.Second

// Observer is a live connection able to receive events.
type Observer interface {
	ID() string
	Send(ctx context.Context, ev core.Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc struct {
	id   string
	send func(ctx context.Context, ev core.Event) error
}

// NewObserverFunc creates an observer with a generated id delivering to fn.
func NewObserverFunc(fn func(ctx context.Context, ev core.Event) error) *ObserverFunc {
	return &ObserverFunc{id: core.NewID(), send: fn}
}

// ID implements Observer.
func (o *ObserverFunc) ID() string { return o.id }

// Send implements Observer.
func (o *ObserverFunc) Send(ctx context.Context, ev core.Event) error { return o.send(ctx, ev) }

// HubOptions configures a Hub.
type HubOptions struct {
	SendTimeout time.Duration
	Logger      logging.Logger
}

// Hub is the set of currently connected observers. It is safe for
// concurrent use; Broadcast works on a snapshot so observers may register or
// leave while a broadcast is in flight.
//
// Delivery is sequential in registration order, which keeps the events of a
// task ordered for every observer. A stalled observer therefore delays the
// observers registered after it by up to SendTimeout, once, after which it
// is dropped and later broadcasts no longer wait on it.
type Hub struct {
	mu          sync.RWMutex
	observers   []Observer
	sendTimeout time.Duration
	logger      logging.Logger
}

// NewHub creates an empty hub.
func NewHub(optFns ...func(o *HubOptions)) *Hub {
	opts := HubOptions{
		SendTimeout: DefaultSendTimeout,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Hub{
		sendTimeout: opts.SendTimeout,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Register adds o to the hub. Registering the same observer twice is a no-op.
func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.observers {
		if existing.ID() == o.ID() {
			return
		}
	}
	h.observers = append(h.observers, o)
	h.logger.Info("hub.observer.registered", "observer_id", o.ID(), "observers", len(h.observers))
}

// Unregister removes o. Absent observers are ignored.
func (h *Hub) Unregister(o Observer) {
	h.remove(o.ID())
}

func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.observers {
		if existing.ID() == id {
			h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
			h.logger.Info("hub.observer.removed", "observer_id", id, "observers", len(h.observers))
			return true
		}
	}
	return false
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

func (h *Hub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Observer, len(h.observers))
	copy(out, h.observers)
	return out
}

// Broadcast delivers a new event to every observer in registration order.
// Observers whose delivery fails or times out are dropped.
func (h *Hub) Broadcast(ctx context.Context, eventType string, data any) {
	h.Publish(ctx, core.NewEvent(eventType, data))
}

// Publish delivers ev as is to every observer.
func (h *Hub) Publish(ctx context.Context, ev core.Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Delivery must not be aborted by the caller's request finishing.
	ctx = context.WithoutCancel(ctx)

	for _, o := range h.snapshot() {
		if err := h.deliver(ctx, o, ev); err != nil {
			h.logger.Warn("hub.delivery.failed", "observer_id", o.ID(), "event_type", ev.Type, "error", err.Error())
			h.remove(o.ID())
		}
	}
}

func (h *Hub) deliver(ctx context.Context, o Observer, ev core.Event) (err error) {
	sendCtx := ctx
	if h.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
	}

	var pc panics.Catcher
	pc.Try(func() { err = o.Send(sendCtx, ev) })
	if rec := pc.Recovered(); rec != nil {
		return fmt.Errorf("observer panicked: %v", rec.Value)
	}
	return err
}

// BroadcastTaskProgress emits a task_progress event.
func (h *Hub) BroadcastTaskProgress(ctx context.Context, taskID string, progress float64, status string, currentAction *string) {
	h.Broadcast(ctx, core.EventTaskProgress, core.TaskProgress{
		TaskID:        taskID,
		Progress:      progress,
		Status:        status,
		CurrentAction: currentAction,
	})
}

// BroadcastAgentActivity emits an agent_activity event. Nil details are
// sent as an empty object.
func (h *Hub) BroadcastAgentActivity(ctx context.Context, agentID, activity string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	h.Broadcast(ctx, core.EventAgentActivity, core.AgentActivity{
		AgentID:  agentID,
		Activity: activity,
		Details:  details,
	})
}
