package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, RoleSystem, NewSystemMessage("s").Role)
	assert.Equal(t, RoleHuman, NewHumanMessage("h").Role)

	ai := NewAIMessage("", FunctionCall{ID: "1", Name: "f"}, FunctionCall{ID: "2", Name: "g"})
	assert.Equal(t, RoleAI, ai.Role)
	assert.True(t, ai.HasToolCalls())
	assert.Equal(t, []string{"f", "g"}, ToolCallNames(ai.ToolCalls))
	assert.False(t, NewAIMessage("done").HasToolCalls())
}

func TestNewToolMessage(t *testing.T) {
	ok := NewToolMessage(FunctionResponse{ID: "1", Name: "f", Response: map[string]any{"temp": 21}})
	assert.Equal(t, RoleTool, ok.Role)
	assert.Equal(t, "1", ok.ToolCallID)
	assert.Equal(t, "f", ok.Name)
	assert.JSONEq(t, `{"temp":21}`, ok.Content)
	assert.False(t, ok.IsError)

	failed := NewToolMessage(FunctionResponse{ID: "2", Name: "g", Error: "tool not found"})
	assert.Equal(t, "tool not found", failed.Content)
	assert.True(t, failed.IsError)
}

func TestCloneMessages(t *testing.T) {
	assert.Nil(t, CloneMessages(nil))

	orig := []Message{NewAIMessage("", FunctionCall{ID: "1", Name: "f"})}
	clone := CloneMessages(orig)
	clone[0].ToolCalls[0].Name = "mutated"
	clone[0].Content = "mutated"

	assert.Equal(t, "f", orig[0].ToolCalls[0].Name)
	assert.Empty(t, orig[0].Content)
}

type named struct{}

func (named) String() string { return "named" }

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"stringer", named{}, "named"},
		{"error", errors.New("boom"), "boom"},
		{"slice", []string{"a", "b"}, `["a","b"]`},
		{"number", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

func TestExecutionError(t *testing.T) {
	assert.NoError(t, NewExecutionError("default", nil))

	cause := errors.New("model timeout")
	err := NewExecutionError("default", cause)
	require.Error(t, err)
	assert.Equal(t, "model timeout", err.Error())
	assert.ErrorIs(t, err, cause)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "default", ee.Capability)

	assert.Same(t, err, NewExecutionError("other", err))
	assert.Equal(t, "x: execution failed", (&ExecutionError{Capability: "x"}).Error())
}
