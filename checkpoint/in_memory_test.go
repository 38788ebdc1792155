package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/core"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, ok, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.False(t, ok)

	msgs := []core.Message{
		core.NewSystemMessage("sys"),
		core.NewAIMessage("", core.FunctionCall{ID: "1", Name: "f", Arguments: "{}"}),
	}
	require.NoError(t, s.Save(ctx, "t", msgs))

	got, ok, err := s.Load(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msgs, got)
	assert.Equal(t, []string{"t"}, s.Threads())
}

func TestInMemoryStore_IsolatesCallers(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	msgs := []core.Message{core.NewAIMessage("", core.FunctionCall{ID: "1", Name: "f"})}
	require.NoError(t, s.Save(ctx, "t", msgs))
	msgs[0].ToolCalls[0].Name = "mutated"

	got, _, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "f", got[0].ToolCalls[0].Name)

	got[0].Content = "changed"
	again, _, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, again[0].Content)
}

func TestInMemoryStore_Delete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "t", []core.Message{core.NewHumanMessage("x")}))
	require.NoError(t, s.Delete(ctx, "t"))
	_, ok, err := s.Load(ctx, "t")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Save(ctx, "t", nil), context.Canceled)
}
