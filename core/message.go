package core

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks the system prompt that opens every thread.
	RoleSystem Role = "system"
	// RoleHuman marks input typed by the human.
	RoleHuman Role = "human"
	// RoleAI marks a model response, optionally carrying tool call requests.
	RoleAI Role = "ai"
	// RoleTool marks the result of a single tool invocation.
	RoleTool Role = "tool"
)

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Stable id correlating the response
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // Matches originating FunctionCall ID
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Message is a single entry of a conversation history. AI messages may carry
// ToolCalls; tool messages carry the ToolCallID and Name of the call they
// answer.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []FunctionCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
}

// NewSystemMessage creates the system prompt message of a thread.
func NewSystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// NewHumanMessage creates a human-authored message.
func NewHumanMessage(text string) Message { return Message{Role: RoleHuman, Content: text} }

// NewAIMessage creates a model response with optional tool calls.
func NewAIMessage(text string, calls ...FunctionCall) Message {
	return Message{Role: RoleAI, Content: text, ToolCalls: calls}
}

// NewToolMessage records a function response as a conversation message.
func NewToolMessage(resp FunctionResponse) Message {
	m := Message{Role: RoleTool, ToolCallID: resp.ID, Name: resp.Name}
	if resp.Error != "" {
		m.Content = resp.Error
		m.IsError = true
		return m
	}
	m.Content = Stringify(resp.Response)
	return m
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// CloneMessages returns a deep copy of msgs.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]FunctionCall(nil), m.ToolCalls...)
		}
	}
	return out
}

// ToolCallNames returns the names of the calls in order.
func ToolCallNames(calls []FunctionCall) []string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}
