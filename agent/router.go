package agent

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/registry"
)

// Persona status values reported by Descriptors.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Route is the outcome of resolving an agent id.
type Route struct {
	// Persona is the matched persona. For unknown ids it only carries the
	// requested ID and the default persona's backing, without prefix,
	// greeting or activity line.
	Persona Persona
	// Known is false when the id fell back to the default persona.
	Known      bool
	Capability Capability
}

// Descriptor is the public listing of a persona.
type Descriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version"`
}

// RouterOptions configures a Router.
type RouterOptions struct {
	Personas         []Persona
	DefaultPersonaID string
	Logger           logging.Logger
}

// Router maps agent ids onto personas and their backing capabilities.
type Router struct {
	personas     []Persona
	defaultID    string
	capabilities *registry.Registry[Capability]
	logger       logging.Logger
}

// NewRouter creates a router over the given capability registry. Personas
// default to DefaultPersonas.
func NewRouter(capabilities *registry.Registry[Capability], optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{
		Personas:         DefaultPersonas(),
		DefaultPersonaID: DefaultPersonaID,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if capabilities == nil {
		capabilities = registry.New[Capability]()
	}
	personas := make([]Persona, len(opts.Personas))
	copy(personas, opts.Personas)

	return &Router{
		personas:     personas,
		defaultID:    opts.DefaultPersonaID,
		capabilities: capabilities,
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// Personas returns a copy of the persona table in declaration order.
func (r *Router) Personas() []Persona {
	out := make([]Persona, len(r.personas))
	copy(out, r.personas)
	return out
}

// Persona returns the persona with the given id.
func (r *Router) Persona(id string) (Persona, bool) {
	for _, p := range r.personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// Lookup finds a persona by id or display name (see Persona.Matches).
func (r *Router) Lookup(name string) (Persona, bool) {
	if p, ok := r.Persona(name); ok {
		return p, true
	}
	for _, p := range r.personas {
		if p.Matches(name) {
			return p, true
		}
	}
	return Persona{}, false
}

func (r *Router) defaultPersona() Persona {
	if p, ok := r.Persona(r.defaultID); ok {
		return p
	}
	return Persona{ID: r.defaultID, Backing: DefaultBacking}
}

// Resolve maps agentID onto a route. An empty id selects the default
// persona; unknown ids fall back to the default persona's backing with no
// decoration. It fails with core.ErrUnavailable when the backing capability
// is not registered.
func (r *Router) Resolve(agentID string) (Route, error) {
	if agentID == "" {
		agentID = r.defaultID
	}

	route := Route{}
	if p, ok := r.Persona(agentID); ok {
		route.Persona, route.Known = p, true
	} else {
		route.Persona = Persona{ID: agentID, Backing: r.defaultPersona().BackingName()}
	}

	capability, err := r.capabilities.Resolve(route.Persona.BackingName())
	if err != nil {
		return Route{}, fmt.Errorf("agent %q backed by %q: %w", agentID, route.Persona.BackingName(), core.ErrUnavailable)
	}
	route.Capability = capability
	return route, nil
}

// Available reports whether agentID resolves to a registered capability.
func (r *Router) Available(agentID string) bool {
	_, err := r.Resolve(agentID)
	return err == nil
}

// RunTask runs a task on the capability behind agentID and applies the
// persona's response prefix. Panics raised by the capability are returned
// as errors.
func (r *Router) RunTask(ctx context.Context, agentID, taskID, description string) (string, error) {
	route, err := r.Resolve(agentID)
	if err != nil {
		return "", err
	}
	out, err := guard(route.Persona.BackingName(), func() (string, error) {
		return route.Capability.RunTask(ctx, taskID, description)
	})
	if err != nil {
		return "", err
	}
	return route.Persona.ResponsePrefix + out, nil
}

// Chat answers a chat message on the capability behind agentID and applies
// the persona's chat greeting.
func (r *Router) Chat(ctx context.Context, agentID, message string) (string, error) {
	route, err := r.Resolve(agentID)
	if err != nil {
		return "", err
	}
	r.logger.Debug("router.chat", "agent_id", agentID, "backing", route.Persona.BackingName())
	out, err := guard(route.Persona.BackingName(), func() (string, error) {
		return route.Capability.Chat(ctx, message)
	})
	if err != nil {
		return "", err
	}
	return route.Persona.ChatGreeting + out, nil
}

// Descriptors lists every persona with its availability.
func (r *Router) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.personas))
	for _, p := range r.personas {
		status := StatusInactive
		if r.capabilities.Has(p.BackingName()) {
			status = StatusActive
		}
		caps := p.Capabilities
		if caps == nil {
			caps = []string{}
		}
		out = append(out, Descriptor{
			ID:           p.ID,
			Name:         p.Name,
			Status:       status,
			Type:         p.Type,
			Description:  p.Description,
			Capabilities: caps,
			Version:      p.Version,
		})
	}
	return out
}

// guard runs fn converting a panic into an ExecutionError.
func guard(capability string, fn func() (string, error)) (out string, err error) {
	var pc panics.Catcher
	pc.Try(func() { out, err = fn() })
	if rec := pc.Recovered(); rec != nil {
		return "", core.NewExecutionError(capability, fmt.Errorf("panic: %v", rec.Value))
	}
	return out, err
}
