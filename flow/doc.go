// Package flow implements the tool-invocation reasoning loop.
//
// A Loop drives one conversation thread through four states:
//
//	await_human_input -> reasoning -> tool_execution -> reasoning -> ... -> await_human_input
//	await_human_input -> terminated (on the exit sentinel)
//
// The blocking read of human input is modelled as an explicit suspension:
// Turn is called with the next input and runs until the loop needs input
// again. Run feeds Turn from an InputSource until the thread terminates.
//
// History is owned by a core.CheckpointStore. Every turn reloads it and every
// transition saves it, so a failed model call leaves the last checkpoint in
// place for the next attempt.
package flow
