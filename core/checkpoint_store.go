package core

import "context"

// CheckpointStore persists the latest conversation state of a thread. It is
// the single authority for conversation history: loops reload from it at the
// start of every turn and save after every transition. Implementations must
// be safe for concurrent use and must not retain the caller's slice.
type CheckpointStore interface {
	// Load returns the stored history and true, or nil and false when the
	// thread has no checkpoint yet.
	Load(ctx context.Context, threadID string) ([]Message, bool, error)
	// Save replaces the stored history of threadID.
	Save(ctx context.Context, threadID string, msgs []Message) error
	// Delete removes the checkpoint of threadID; absent threads are a no-op.
	Delete(ctx context.Context, threadID string) error
}
