package agent

import "context"

// Capability is a named backing service that can answer chat messages and
// process tasks. Implementations must be safe for concurrent use.
type Capability interface {
	Chat(ctx context.Context, message string) (string, error)
	RunTask(ctx context.Context, taskID, description string) (string, error)
}

// CapabilityFuncs adapts two plain functions to the Capability interface.
// A nil function answers with an empty string.
type CapabilityFuncs struct {
	ChatFunc    func(ctx context.Context, message string) (string, error)
	RunTaskFunc func(ctx context.Context, taskID, description string) (string, error)
}

// Chat implements Capability.
func (c CapabilityFuncs) Chat(ctx context.Context, message string) (string, error) {
	if c.ChatFunc == nil {
		return "", nil
	}
	return c.ChatFunc(ctx, message)
}

// RunTask implements Capability.
func (c CapabilityFuncs) RunTask(ctx context.Context, taskID, description string) (string, error) {
	if c.RunTaskFunc == nil {
		return "", nil
	}
	return c.RunTaskFunc(ctx, taskID, description)
}
