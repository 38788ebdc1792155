// Package logging provides a minimal logging interface and adapters for the kernel.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestrator, hub, reasoning loop and server use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - KernelLogger with a component scope and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := task.NewOrchestrator(router, hub, func(o *task.OrchestratorOptions) { o.Logger = logger })
package logging
