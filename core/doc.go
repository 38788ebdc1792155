// Package core provides the foundational domain types and interfaces shared by
// the kernel packages:
//
//   - Messages (role-tagged conversation entries with tool calls / responses)
//   - Events (typed fire-and-forget notifications pushed to observers)
//   - Errors (ErrUnavailable, ErrNotFound, ExecutionError)
//   - CheckpointStore (thread-scoped conversation persistence)
//   - ToolContext (scoped execution surface for tools)
//
// The package keeps implementation concerns (persistence, orchestration,
// transports, concrete agents) out of scope, exposing small interfaces to
// enable custom backends.
package core
