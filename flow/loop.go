package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/model"
	"github.com/hupe1980/agentkernel/registry"
	"github.com/hupe1980/agentkernel/tool"
)

// State is a node of the reasoning loop state machine.
type State string

// Loop states.
const (
	StateAwaitHumanInput State = "await_human_input"
	StateReasoning       State = "reasoning"
	StateToolExecution   State = "tool_execution"
	StateTerminated      State = "terminated"
)

const (
	// Greeting is shown when a thread holds nothing but its system prompt.
	Greeting = "What can I help you with?"
	// ExitSentinel ends the loop when entered as input (case-insensitive).
	ExitSentinel = "exit"
	// DefaultMaxSteps bounds the reasoning steps of a single turn.
	DefaultMaxSteps = 25
)

var (
	// ErrMaxStepsExceeded is returned when a turn keeps requesting tools
	// beyond the configured step budget.
	ErrMaxStepsExceeded = errors.New("reasoning loop exceeded max steps")
	// ErrBlankInput is returned by Turn for empty or whitespace-only input.
	ErrBlankInput = errors.New("blank input")
)

// TurnResult summarizes one await_human_input visit.
type TurnResult struct {
	State     State    `json:"state"`
	Response  string   `json:"response"`
	ToolCalls []string `json:"tool_calls"`
	Steps     int      `json:"steps"`
}

// LoopOptions configures a Loop.
type LoopOptions struct {
	SystemPrompt string
	// Tools are offered to the model on every reasoning step.
	Tools       *registry.Registry[tool.Tool]
	MaxSteps    int
	Executor    FunctionExecutor
	Temperature *float64
	Logger      logging.Logger
	// OnTransition, when set, observes every state change.
	OnTransition func(threadID string, from, to State)
}

// Loop is the reasoning loop. It is safe for concurrent use; turns on the
// same thread are serialized.
type Loop struct {
	llm          model.Model
	store        core.CheckpointStore
	tools        *registry.Registry[tool.Tool]
	executor     FunctionExecutor
	systemPrompt string
	maxSteps     int
	temperature  *float64
	logger       logging.Logger
	onTransition func(threadID string, from, to State)

	mu      sync.Mutex
	threads map[string]*threadLock
}

// threadLock serializes turns on one thread. The entry is dropped once no
// turn holds or waits for it.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// NewLoop creates a reasoning loop over llm persisting to store.
func NewLoop(llm model.Model, store core.CheckpointStore, optFns ...func(o *LoopOptions)) *Loop {
	opts := LoopOptions{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Tools == nil {
		opts.Tools = registry.New[tool.Tool]()
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.Executor == nil {
		opts.Executor = NewParallelFunctionExecutor(FunctionExecutorConfig{Logger: logger})
	}

	return &Loop{
		llm:          llm,
		store:        store,
		tools:        opts.Tools,
		executor:     opts.Executor,
		systemPrompt: opts.SystemPrompt,
		maxSteps:     opts.MaxSteps,
		temperature:  opts.Temperature,
		logger:       logger,
		onTransition: opts.OnTransition,
		threads:      make(map[string]*threadLock),
	}
}

// IsExit reports whether input is the exit sentinel.
func IsExit(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), ExitSentinel)
}

func (l *Loop) lock(threadID string) func() {
	l.mu.Lock()
	tl, ok := l.threads[threadID]
	if !ok {
		tl = &threadLock{}
		l.threads[threadID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.threads, threadID)
		}
		l.mu.Unlock()
	}
}

func (l *Loop) lockedThreads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.threads)
}

// History returns the checkpointed history of threadID. A fresh thread
// starts with the system prompt.
func (l *Loop) History(ctx context.Context, threadID string) ([]core.Message, error) {
	msgs, ok, err := l.store.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	if !ok || len(msgs) == 0 {
		return []core.Message{core.NewSystemMessage(l.systemPrompt)}, nil
	}
	return msgs, nil
}

// Reset discards the checkpointed history of threadID.
func (l *Loop) Reset(ctx context.Context, threadID string) error {
	unlock := l.lock(threadID)
	defer unlock()
	if err := l.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", threadID, err)
	}
	l.logger.Info("loop.reset", "thread_id", threadID)
	return nil
}

// Prompt returns the text displayed while the thread awaits human input:
// the greeting for a thread holding only its system prompt, otherwise the
// content of the last message.
func (l *Loop) Prompt(ctx context.Context, threadID string) (string, error) {
	msgs, err := l.History(ctx, threadID)
	if err != nil {
		return "", err
	}
	return promptFor(msgs), nil
}

func promptFor(msgs []core.Message) string {
	if len(msgs) <= 1 {
		return Greeting
	}
	return msgs[len(msgs)-1].Content
}

func (l *Loop) transition(threadID string, from, to State) {
	l.logger.Debug("loop.transition", "thread_id", threadID, "from", string(from), "to", string(to))
	if l.onTransition != nil {
		l.onTransition(threadID, from, to)
	}
}

func (l *Loop) save(ctx context.Context, threadID string, msgs []core.Message) error {
	if err := l.store.Save(ctx, threadID, msgs); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", threadID, err)
	}
	return nil
}

// Turn runs one await_human_input visit with input. The exit sentinel
// terminates the thread without a model call. Otherwise the human message is
// appended and the loop alternates between reasoning and tool execution until
// the model answers without tool calls. Model and checkpoint failures are
// returned; tool failures are reported to the model as tool messages.
func (l *Loop) Turn(ctx context.Context, threadID, input string) (TurnResult, error) {
	if IsExit(input) {
		l.transition(threadID, StateAwaitHumanInput, StateTerminated)
		return TurnResult{State: StateTerminated}, nil
	}
	if strings.TrimSpace(input) == "" {
		return TurnResult{}, ErrBlankInput
	}

	unlock := l.lock(threadID)
	defer unlock()

	msgs, err := l.History(ctx, threadID)
	if err != nil {
		return TurnResult{}, err
	}

	msgs = append(msgs, core.NewHumanMessage(input))
	if err := l.save(ctx, threadID, msgs); err != nil {
		return TurnResult{}, err
	}
	l.transition(threadID, StateAwaitHumanInput, StateReasoning)

	res := TurnResult{ToolCalls: []string{}}
	defs := tool.Definitions(l.tools.Values())

	for {
		if res.Steps >= l.maxSteps {
			l.logger.Warn("loop.max_steps", "thread_id", threadID, "steps", res.Steps)
			return res, ErrMaxStepsExceeded
		}
		res.Steps++

		resp, err := model.Collect(ctx, l.llm, model.Request{
			Messages:    msgs,
			Tools:       defs,
			Temperature: l.temperature,
		})
		if err != nil {
			l.logger.Error("loop.model.error", "thread_id", threadID, "step", res.Steps, "error", err.Error())
			return res, fmt.Errorf("reasoning step %d: %w", res.Steps, err)
		}

		ai := resp.Message
		ai.Role = core.RoleAI
		for i := range ai.ToolCalls {
			if ai.ToolCalls[i].ID == "" {
				ai.ToolCalls[i].ID = core.NewID()
			}
		}
		msgs = append(msgs, ai)
		if err := l.save(ctx, threadID, msgs); err != nil {
			return res, err
		}

		if !ai.HasToolCalls() {
			l.transition(threadID, StateReasoning, StateAwaitHumanInput)
			res.State = StateAwaitHumanInput
			res.Response = ai.Content
			return res, nil
		}

		l.transition(threadID, StateReasoning, StateToolExecution)
		res.ToolCalls = append(res.ToolCalls, core.ToolCallNames(ai.ToolCalls)...)

		for _, fr := range l.executor.Execute(ctx, threadID, l.tools, ai.ToolCalls) {
			msgs = append(msgs, core.NewToolMessage(fr))
		}
		if err := l.save(ctx, threadID, msgs); err != nil {
			return res, err
		}
		l.transition(threadID, StateToolExecution, StateReasoning)
	}
}

// Output observes the result of every completed turn.
type Output func(TurnResult)

// Run drives Turn from in until the thread terminates or in is exhausted.
// Blank input is requested again without reaching the model.
func (l *Loop) Run(ctx context.Context, threadID string, in InputSource, out Output) error {
	for {
		prompt, err := l.Prompt(ctx, threadID)
		if err != nil {
			return err
		}

		input, err := in.Next(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrInputClosed) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		res, err := l.Turn(ctx, threadID, input)
		if err != nil {
			return err
		}
		if out != nil {
			out(res)
		}
		if res.State == StateTerminated {
			return nil
		}
	}
}
