package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

func tc() *core.ToolContext {
	return core.NewToolContext(context.Background(), "thread", "fc", logging.NoOpLogger{})
}

func TestListAvailableAgentsTool(t *testing.T) {
	r := newTestRouter(&mockCapability{})
	res, err := NewListAvailableAgentsTool(r).Call(tc(), map[string]any{})
	require.NoError(t, err)

	agents, ok := res.([]map[string]any)
	require.True(t, ok)
	require.Len(t, agents, 5)
	assert.Equal(t, "Bragi", agents[0]["name"])
	assert.Equal(t, StatusActive, agents[0]["status"])
}

func TestAssignAgentToTaskTool(t *testing.T) {
	r := newTestRouter(CapabilityFuncs{
		RunTaskFunc: func(_ context.Context, _ string, d string) (string, error) { return "done: " + d, nil },
	})
	assign := NewAssignAgentToTaskTool(r)

	res, err := assign.Call(tc(), map[string]any{"agent_name": "odin", "task": "plan"})
	require.NoError(t, err)
	assert.Equal(t, "Odin's wisdom: done: plan", res)
}

func TestAssignAgentToTaskTool_FailuresAreStrings(t *testing.T) {
	r := newTestRouter(CapabilityFuncs{
		RunTaskFunc: func(context.Context, string, string) (string, error) { return "", errors.New("boom") },
	})
	assign := NewAssignAgentToTaskTool(r)

	res, err := assign.Call(tc(), map[string]any{"agent_name": "bragi", "task": "x"})
	require.NoError(t, err)
	assert.Contains(t, res, "Failed to execute task with agent 'bragi': boom")

	res, err = assign.Call(tc(), map[string]any{"agent_name": "loki", "task": "x"})
	require.NoError(t, err)
	assert.Contains(t, res, "unknown agent")
}

func TestAssignAgentToTaskTool_Validation(t *testing.T) {
	_, err := NewAssignAgentToTaskTool(newTestRouter(nil)).Call(tc(), map[string]any{"agent_name": "odin"})
	assert.Error(t, err)
}
