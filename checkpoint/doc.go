// Package checkpoint provides core.CheckpointStore implementations that
// persist the conversation history of reasoning-loop threads.
//
// InMemoryStore keeps histories in a process local map and suits tests and
// ephemeral servers. The sqlite sub-package stores them as JSON documents in
// a SQLite database so a thread survives restarts.
package checkpoint
