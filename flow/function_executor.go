package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/registry"
	"github.com/hupe1980/agentkernel/tool"
)

// FunctionExecutor executes the function calls of one model response.
// Implementations must:
//   - Return exactly one FunctionResponse per incoming FunctionCall, in call order
//   - Never panic (recover internally and report the panic as the call's error)
//   - Report failures (unknown tool, malformed arguments, execution errors)
//     in FunctionResponse.Error rather than returning them
type FunctionExecutor interface {
	Execute(ctx context.Context, threadID string, tools *registry.Registry[tool.Tool], calls []core.FunctionCall) []core.FunctionResponse
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool
	Logger         logging.Logger
}

// toolCallLogger is implemented by loggers with a dedicated tool call record
// (see logging.KernelLogger).
type toolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg    FunctionExecutorConfig
	logger logging.Logger
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg, logger: logging.OrNoOp(cfg.Logger)}
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	threadID string,
	tools *registry.Registry[tool.Tool],
	calls []core.FunctionCall,
) []core.FunctionResponse {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]core.FunctionResponse, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeOne(ctx, threadID, tools, calls[0])
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()
	p := pool.New().WithMaxGoroutines(maxPar)
	for i := range calls {
		idx, fc := i, calls[i]
		p.Go(func() {
			results[idx] = e.executeOne(ctx, threadID, tools, fc)
		})
	}
	p.Wait()

	e.logger.Debug(
		"loop.functions.batch.complete",
		"thread_id", threadID,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *parallelFunctionExecutor) executeOne(
	ctx context.Context,
	threadID string,
	tools *registry.Registry[tool.Tool],
	fc core.FunctionCall,
) core.FunctionResponse {
	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	if e.cfg.LogStartEvents {
		e.logger.Info("loop.function.start", "thread_id", threadID, "function", fc.Name, "function_call_id", fc.ID)
	}

	toolCtx := core.NewToolContext(ctx, threadID, fc.ID, e.logger)
	start := time.Now()

	var (
		result any
		err    error
		pc     panics.Catcher
	)
	pc.Try(func() {
		result, err = executeTool(tools, toolCtx, fc.Name, fc.Arguments)
	})
	if rec := pc.Recovered(); rec != nil {
		e.logger.Error("loop.function.panic", "thread_id", threadID, "function", fc.Name, "recover", fmt.Sprint(rec.Value))
		err = &tool.ToolError{Tool: fc.Name, Message: fmt.Sprintf("panic: %v", rec.Value), Code: tool.CodeExecution}
	}

	if tl, ok := e.logger.(toolCallLogger); ok {
		tl.LogToolCall(fc.Name, time.Since(start), err == nil, err)
	} else {
		e.logger.Info(
			"loop.function.executed",
			"thread_id", threadID,
			"function", fc.Name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err != nil,
		)
	}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Response = result
	return resp
}

// executeTool centralizes tool lookup and argument decoding.
func executeTool(tools *registry.Registry[tool.Tool], toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, err := tools.Resolve(toolName)
	if err != nil {
		return nil, tool.NewToolError(toolName, fmt.Sprintf("tool %s not found", toolName), tool.CodeNotFound)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, tool.NewToolError(toolName, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, argMap)
}
