package testutil

import (
	"fmt"

	"github.com/hupe1980/agentkernel/core"
)

// HistoryBuilder constructs a conversation history for tests.
// Example:
//
//	msgs := NewHistoryBuilder("You are Thor.").Human("hi").Call("get_weather", `{"city":"Oslo"}`).Result("sunny").AI("It is sunny.").Build()
//
// Call generates sequential call ids; Result answers the most recent call.
type HistoryBuilder struct {
	msgs  []core.Message
	calls int
	last  core.FunctionCall
}

// NewHistoryBuilder starts a history with the given system prompt.
func NewHistoryBuilder(systemPrompt string) *HistoryBuilder {
	return &HistoryBuilder{msgs: []core.Message{core.NewSystemMessage(systemPrompt)}}
}

// Human appends a human message (chainable).
func (b *HistoryBuilder) Human(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewHumanMessage(text))
	return b
}

// AI appends a plain ai message (chainable).
func (b *HistoryBuilder) AI(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewAIMessage(text))
	return b
}

// Call appends an ai message requesting a single tool call (chainable).
func (b *HistoryBuilder) Call(name, arguments string) *HistoryBuilder {
	b.calls++
	b.last = core.FunctionCall{ID: fmt.Sprintf("call-%d", b.calls), Name: name, Arguments: arguments}
	b.msgs = append(b.msgs, core.NewAIMessage("", b.last))
	return b
}

// Result appends the tool response to the most recent call (chainable).
func (b *HistoryBuilder) Result(response any) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewToolMessage(core.FunctionResponse{ID: b.last.ID, Name: b.last.Name, Response: response}))
	return b
}

// Failure appends a failed tool response to the most recent call (chainable).
func (b *HistoryBuilder) Failure(errMsg string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewToolMessage(core.FunctionResponse{ID: b.last.ID, Name: b.last.Name, Error: errMsg}))
	return b
}

// Build returns a copy of the accumulated history.
func (b *HistoryBuilder) Build() []core.Message {
	return core.CloneMessages(b.msgs)
}
