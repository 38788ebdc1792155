package model

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

// ErrScriptExhausted is returned by ScriptedModel once every step was consumed.
var ErrScriptExhausted = errors.New("scripted model: no steps left")

// Step is one scripted model reaction: either a message or an error.
type Step struct {
	Message core.Message
	Err     error
}

// Reply is a step answering with plain text.
func Reply(text string) Step { return Step{Message: core.NewAIMessage(text)} }

// CallTools is a step requesting the given function calls.
func CallTools(calls ...core.FunctionCall) Step { return Step{Message: core.NewAIMessage("", calls...)} }

// Fail is a step raising err.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedModel replays a fixed sequence of steps and records every request
// it receives. It drives deterministic tool-calling conversations in tests.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel creates a model replaying steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Push appends further steps.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	req.Messages = core.CloneMessages(req.Messages)
	m.requests = append(m.requests, req)
	var (
		step Step
		ok   bool
	)
	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		switch {
		case ctx.Err() != nil:
			errCh <- ctx.Err()
		case !ok:
			errCh <- ErrScriptExhausted
		case step.Err != nil:
			errCh <- step.Err
		default:
			finish := "stop"
			if step.Message.HasToolCalls() {
				finish = "tool_calls"
			}
			respCh <- Response{ID: core.NewID(), Message: step.Message, FinishReason: finish}
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}
