package core

import (
	"context"

	"github.com/hupe1980/agentkernel/logging"
)

// ToolContext provides the surface a tool implementation sees while it runs:
// the cancellation context of the turn, the conversation thread, the id of
// the function call being answered and a logger.
type ToolContext struct {
	ctx            context.Context
	threadID       string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(ctx context.Context, threadID, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ToolContext{
		ctx:            ctx,
		threadID:       threadID,
		functionCallID: functionCallID,
		logger:         logging.OrNoOp(logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// ThreadID returns the conversation thread the call belongs to.
func (tc *ToolContext) ThreadID() string { return tc.threadID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
