package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/agentkernel/core"
)

var _ core.CheckpointStore = (*InMemoryStore)(nil)

// InMemoryStore is a volatile CheckpointStore storing histories in a process
// local map. It is safe for concurrent access. Histories are cloned on the
// way in and out so callers can never mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]core.Message)}
}

// Load returns a clone of the stored history.
func (s *InMemoryStore) Load(ctx context.Context, threadID string) ([]core.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.threads[threadID]
	if !ok {
		return nil, false, nil
	}
	return core.CloneMessages(msgs), true, nil
}

// Save stores a clone of msgs as the latest checkpoint of threadID.
func (s *InMemoryStore) Save(ctx context.Context, threadID string, msgs []core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = core.CloneMessages(msgs)
	return nil
}

// Delete removes the checkpoint of threadID.
func (s *InMemoryStore) Delete(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads returns the ids of all stored threads in sorted order.
func (s *InMemoryStore) Threads() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
