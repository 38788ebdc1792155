package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/tool"
)

// Built-in tool names.
const (
	ListAvailableAgentsToolName = "list_available_agents"
	AssignAgentToTaskToolName   = "assign_agent_to_task"
)

// NewListAvailableAgentsTool returns a tool listing the persona table as
// "Name (id): description" lines together with availability.
func NewListAvailableAgentsTool(r *Router) tool.Tool {
	return tool.NewFunctionTool(
		ListAvailableAgentsToolName,
		"List the agents available for assignment with their descriptions.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			ds := r.Descriptors()
			agents := make([]map[string]any, 0, len(ds))
			for _, d := range ds {
				agents = append(agents, map[string]any{
					"id":          d.ID,
					"name":        d.Name,
					"description": d.Description,
					"status":      d.Status,
				})
			}
			return agents, nil
		},
	)
}

type assignArgs struct {
	AgentName string `json:"agent_name" description:"Name or id of the agent to assign (for example bragi, odin, thor, software_engineer, ai_researcher)"`
	Task      string `json:"task" description:"The task description or request for the agent"`
}

// NewAssignAgentToTaskTool returns a tool that runs a task on the named
// agent and returns its response. Execution failures are returned as a
// descriptive string so the reasoning model can react to them.
func NewAssignAgentToTaskTool(r *Router) tool.Tool {
	return tool.NewFunctionToolFromStruct(
		AssignAgentToTaskToolName,
		"Assign an agent to a task and get their response.",
		assignArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			name, _ := args["agent_name"].(string)
			task, _ := args["task"].(string)
			taskID := core.NewID()
			logger := tc.Logger()

			p, ok := r.Lookup(name)
			if !ok {
				msg := fmt.Sprintf("Task %s: Failed to execute task with agent '%s': unknown agent", taskID, name)
				logger.Warn("tool.assign.unknown_agent", "agent", name, "task_id", taskID)
				return msg, nil
			}

			logger.Info("tool.assign.start", "agent", p.ID, "task_id", taskID)
			out, err := r.RunTask(tc.Context(), p.ID, taskID, task)
			if err == nil && strings.TrimSpace(out) == "" {
				err = fmt.Errorf("agent '%s' returned no response", name)
			}
			if err != nil {
				logger.Error("tool.assign.error", "agent", p.ID, "task_id", taskID, "error", err.Error())
				return fmt.Sprintf("Task %s: Failed to execute task with agent '%s': %v", taskID, name, err), nil
			}
			return out, nil
		},
	)
}

// Tools returns the built-in agent tools bound to r.
func Tools(r *Router) []tool.Tool {
	return []tool.Tool{NewListAvailableAgentsTool(r), NewAssignAgentToTaskTool(r)}
}
