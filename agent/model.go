package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/util"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/model"
)

// DefaultSystemPrompt is the identity prompt of the default assistant.
const DefaultSystemPrompt = `You are Bragi, a wise and eloquent AI assistant. You are part of the kernel's agent system,
working alongside other specialized agents like Odin (the coordinator) and Thor (the architect).
Your role is to understand and respond to user queries with wisdom, clarity, and precision.

When in chat mode, engage in natural conversation while maintaining your identity as Bragi.
When handling tasks, provide detailed and actionable responses.

Remember:
- Be wise and thoughtful in your responses
- Maintain your identity as Bragi
- Provide clear and precise information
- Be helpful and supportive`

// DefaultTaskTemplate renders the prompt sent for RunTask. It receives
// TaskID and Description.
const DefaultTaskTemplate = `Task ID: {{.TaskID}}
Task Description: {{.Description}}

Please analyze this task and provide a detailed response with:
1. Your understanding of the task
2. A step-by-step plan to complete it
3. The final result or recommendation`

// ArchitectPrompt is the system prompt of the tool-calling reasoning loop.
const ArchitectPrompt = `You are Thor, a ReAct agent that achieves goals for the user.

You are part of a modular system of agents that collaborate to complete tasks for users.
The system is made up of agents who work together to solve problems and tools which
those agents use to interact with the outside world.

The agents that make up the system:
- **Thor**: the architect who designs agents and makes sure they have the right tools.
- **Odin**: the coordinator who oversees all agents and allocates resources.
- **Bragi**: the assistant who answers questions and helps with complex problems.
- **Software Engineer**: implements and maintains software solutions.
- **AI Researcher**: explores new AI technologies and methodologies.

Work with the user in this order:
1. Reach a shared understanding of the goal.
2. Think of a detailed sequential plan for achieving the goal by orchestrating agents.
3. Assign agents to tasks and coordinate their activity based on your plan.
4. Respond to the user once the goal is achieved or when you need their input.

Use list_available_agents to see who can help and assign_agent_to_task to delegate work.
Prefer agent roles that are composable and reusable over narrowly specific ones.`

// ModelAgentOptions configures a ModelAgent instance.
type ModelAgentOptions struct {
	Instruction  Instruction
	TaskTemplate string
	// Temperature overrides the model's configured temperature when set.
	Temperature *float64
	Logger      logging.Logger
}

// ModelAgent is a Capability backed by a language model and a system prompt.
// Every call is stateless: the system prompt plus a single human message.
type ModelAgent struct {
	name         string
	llm          model.Model
	instruction  Instruction
	taskTemplate *util.Template
	temperature  *float64
	logger       logging.Logger
}

// NewModelAgent creates a model-backed capability.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:  NewInstructionFromText(DefaultSystemPrompt),
		TaskTemplate: DefaultTaskTemplate,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tmpl, err := util.ParseTemplate(name+".task", opts.TaskTemplate)
	if err != nil {
		return nil, err
	}

	return &ModelAgent{
		name:         name,
		llm:          llm,
		instruction:  opts.Instruction,
		taskTemplate: tmpl,
		temperature:  opts.Temperature,
		logger:       logging.OrNoOp(opts.Logger),
	}, nil
}

// Name returns the capability name.
func (a *ModelAgent) Name() string { return a.name }

// Model returns the backing language model.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Chat answers a direct chat message.
func (a *ModelAgent) Chat(ctx context.Context, message string) (string, error) {
	out, err := a.invoke(ctx, "chat", message)
	if err != nil {
		return "", core.NewExecutionError(a.name, fmt.Errorf("error in chat: %w", err))
	}
	return out, nil
}

// RunTask renders the task prompt and asks the model for a detailed answer.
func (a *ModelAgent) RunTask(ctx context.Context, taskID, description string) (string, error) {
	prompt, err := a.taskTemplate.Render(struct {
		TaskID      string
		Description string
	}{TaskID: taskID, Description: description})
	if err != nil {
		return "", core.NewExecutionError(a.name, fmt.Errorf("render task prompt: %w", err))
	}

	out, err := a.invoke(ctx, "task", prompt)
	if err != nil {
		return "", core.NewExecutionError(a.name, fmt.Errorf("error processing task: %w", err))
	}
	return out, nil
}

func (a *ModelAgent) invoke(ctx context.Context, mode, input string) (string, error) {
	system, err := a.instruction.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	msgs := make([]core.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, core.NewSystemMessage(system))
	}
	msgs = append(msgs, core.NewHumanMessage(input))

	start := time.Now()
	resp, err := model.Collect(ctx, a.llm, model.Request{Messages: msgs, Temperature: a.temperature})
	if err != nil {
		a.logCall(0, time.Since(start), err)
		a.logger.Error("agent.model.error", "agent", a.name, "mode", mode, "error", err.Error())
		return "", err
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	a.logCall(tokens, time.Since(start), nil)
	a.logger.Debug("agent.model.success", "agent", a.name, "mode", mode, "tokens", tokens, "duration_ms", time.Since(start).Milliseconds())

	return resp.Message.Content, nil
}

type llmCallLogger interface {
	LogLLMCall(model string, tokens int, dur time.Duration, success bool, err error)
}

func (a *ModelAgent) logCall(tokens int, dur time.Duration, err error) {
	if l, ok := a.logger.(llmCallLogger); ok {
		l.LogLLMCall(a.llm.Info().Name, tokens, dur, err == nil, err)
	}
}
