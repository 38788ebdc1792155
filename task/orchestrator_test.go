package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/broadcast"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/registry"
)

func newTestOrchestrator(t *testing.T, c agent.Capability) (*Orchestrator, *broadcast.Recorder) {
	t.Helper()
	reg := registry.New[agent.Capability]()
	if c != nil {
		reg.Register(agent.DefaultBacking, c)
	}
	hub := broadcast.NewHub()
	rec := broadcast.NewRecorder()
	hub.Register(rec)
	return NewOrchestrator(agent.NewRouter(reg), hub), rec
}

func echo(prefix string) agent.Capability {
	return agent.CapabilityFuncs{
		RunTaskFunc: func(_ context.Context, _, description string) (string, error) {
			return prefix + description, nil
		},
	}
}

func TestCreateAndRun_Success(t *testing.T) {
	o, rec := newTestOrchestrator(t, echo("R:"))

	got, err := o.CreateAndRun(context.Background(), Request{Description: "Sum 2+2"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "R:Sum 2+2", *got.Result)
	assert.Equal(t, "assistant", got.AgentID)
	assert.Equal(t, 1, got.Priority)
	assert.Equal(t, "api", got.Metadata.Source)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	assert.Equal(t, []string{
		core.EventTaskCreated,
		core.EventTaskProgress,
		core.EventAgentActivity,
		core.EventTaskProgress,
		core.EventTaskUpdate,
	}, rec.Types())

	progress := rec.Filter(core.EventTaskProgress)
	first := progress[0].Data.(core.TaskProgress)
	assert.InDelta(t, 0.1, first.Progress, 1e-9)
	assert.Equal(t, "started", first.Status)
	require.NotNil(t, first.CurrentAction)
	assert.Equal(t, ActionStarted, *first.CurrentAction)

	last := progress[1].Data.(core.TaskProgress)
	assert.InDelta(t, 1.0, last.Progress, 1e-9)
	assert.Equal(t, "completed", last.Status)

	update := rec.Filter(core.EventTaskUpdate)[0].Data.(Task)
	assert.Equal(t, got, update)

	m := o.Metrics()
	assert.Equal(t, 1, m.TasksCompleted)
	assert.Equal(t, 0, m.TasksFailed)
}

func TestCreateAndRun_PersonaPrefix(t *testing.T) {
	o, rec := newTestOrchestrator(t, echo(""))

	got, err := o.CreateAndRun(context.Background(), Request{Description: "plan", AgentID: "coordinator"})
	require.NoError(t, err)
	assert.Equal(t, "Odin's wisdom: plan", *got.Result)

	activity := rec.Filter(core.EventAgentActivity)
	require.Len(t, activity, 1)
	assert.Equal(t, "coordinator", activity[0].Data.(core.AgentActivity).AgentID)
}

func TestCreateAndRun_Priority(t *testing.T) {
	o, _ := newTestOrchestrator(t, echo(""))

	zero, three := 0, 3
	tests := []struct {
		name     string
		priority *int
		want     int
	}{
		{"absent", nil, DefaultPriority},
		{"explicit zero", &zero, 0},
		{"explicit", &three, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.CreateAndRun(context.Background(), Request{Description: "x", Priority: tt.priority})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Priority)
		})
	}
}

func TestCreateAndRun_UnknownAgentFallsBack(t *testing.T) {
	o, rec := newTestOrchestrator(t, echo(""))

	got, err := o.CreateAndRun(context.Background(), Request{Description: "x", AgentID: "zeus"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "x", *got.Result)
	assert.Equal(t, "zeus", got.AgentID)
	assert.Empty(t, rec.Filter(core.EventAgentActivity))
}

func TestCreateAndRun_Failure(t *testing.T) {
	o, rec := newTestOrchestrator(t, agent.CapabilityFuncs{
		RunTaskFunc: func(context.Context, string, string) (string, error) {
			return "", errors.New("model timeout")
		},
	})

	got, err := o.CreateAndRun(context.Background(), Request{Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "model timeout", *got.Result)

	progress := rec.Filter(core.EventTaskProgress)
	last := progress[len(progress)-1].Data.(core.TaskProgress)
	assert.Equal(t, "failed", last.Status)
	assert.Equal(t, "Task failed: model timeout", *last.CurrentAction)

	updates := rec.Filter(core.EventTaskUpdate)
	require.Len(t, updates, 1)
	updated := updates[0].Data.(Task)
	assert.Equal(t, StatusFailed, updated.Status)
	assert.Equal(t, "model timeout", *updated.Result)

	assert.Equal(t, 1, o.Metrics().TasksFailed)
}

func TestCreateAndRun_PanicIsFailure(t *testing.T) {
	o, _ := newTestOrchestrator(t, agent.CapabilityFuncs{
		RunTaskFunc: func(context.Context, string, string) (string, error) {
			panic("boom")
		},
	})

	got, err := o.CreateAndRun(context.Background(), Request{Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, *got.Result, "boom")
}

func TestCreateAndRun_Unavailable(t *testing.T) {
	o, rec := newTestOrchestrator(t, nil)

	_, err := o.CreateAndRun(context.Background(), Request{Description: "x"})
	require.ErrorIs(t, err, core.ErrUnavailable)
	assert.Empty(t, o.List(nil))
	assert.Empty(t, rec.Events())
}

func TestCreateAndRun_CancelledContextFails(t *testing.T) {
	o, _ := newTestOrchestrator(t, agent.CapabilityFuncs{
		RunTaskFunc: func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := o.CreateAndRun(ctx, Request{Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestArchive(t *testing.T) {
	o, _ := newTestOrchestrator(t, echo(""))
	ctx := context.Background()

	a, err := o.CreateAndRun(ctx, Request{Description: "a"})
	require.NoError(t, err)
	b, err := o.CreateAndRun(ctx, Request{Description: "b"})
	require.NoError(t, err)

	require.NoError(t, o.Archive(a.ID))

	archived, active := true, false
	assert.Equal(t, []string{a.ID}, ids(o.List(&archived)))
	assert.Equal(t, []string{b.ID}, ids(o.List(&active)))
	assert.Equal(t, []string{a.ID, b.ID}, ids(o.List(nil)))

	got, err := o.Get(a.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, a.Status, got.Status)
	assert.Equal(t, a.Result, got.Result)
	assert.Equal(t, a.AgentID, got.AgentID)

	require.NoError(t, o.Unarchive(a.ID))
	got, _ = o.Get(a.ID)
	assert.False(t, got.Archived)

	assert.ErrorIs(t, o.Archive("missing"), core.ErrNotFound)
	assert.ErrorIs(t, o.Unarchive("missing"), core.ErrNotFound)
	_, err = o.Get("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListReturnsCopies(t *testing.T) {
	o, _ := newTestOrchestrator(t, echo(""))
	_, err := o.CreateAndRun(context.Background(), Request{Description: "a", Tags: []string{"x"}})
	require.NoError(t, err)

	list := o.List(nil)
	list[0].Metadata.Tags[0] = "mutated"
	*list[0].Result = "mutated"

	again := o.List(nil)
	assert.Equal(t, "x", again[0].Metadata.Tags[0])
	assert.Equal(t, "a", *again[0].Result)
}

func TestConcurrentTasks(t *testing.T) {
	o, _ := newTestOrchestrator(t, echo(""))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.CreateAndRun(context.Background(), Request{Description: "x"})
		}()
	}
	wg.Wait()

	assert.Len(t, o.List(nil), 20)
	assert.Equal(t, 20, o.Metrics().TasksCompleted)
}

func TestMetricsUptime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	o := NewOrchestrator(agent.NewRouter(nil), broadcast.NewHub(), func(opts *OrchestratorOptions) {
		opts.Now = func() time.Time { return now }
	})
	now = now.Add(90 * time.Second)
	assert.InDelta(t, 90.0, o.Metrics().UptimeSeconds, 1e-9)
}

func TestTaskJSON(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tk := Task{
		ID:          "t1",
		Description: "d",
		Status:      StatusInProgress,
		CreatedAt:   created,
		UpdatedAt:   created,
		AgentID:     "assistant",
		Priority:    1,
		Metadata:    Metadata{Source: "api", Tags: []string{}},
	}

	data, err := json.Marshal(tk)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Nil(t, m["result"])
	assert.Equal(t, "in_progress", m["status"])
	assert.Equal(t, "2025-01-01T12:00:00Z", m["created_at"])
	assert.Equal(t, false, m["archived"])
	assert.Equal(t, map[string]any{"client_info": "", "source": "api", "tags": []any{}}, m["metadata"])
}

func TestTaskJSON_Decode(t *testing.T) {
	created := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	result := "Odin's wisdom: done"
	want := Task{
		ID:          "t2",
		Description: "plan",
		Status:      StatusCompleted,
		Result:      &result,
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Second),
		AgentID:     "coordinator",
		Priority:    3,
		Metadata:    Metadata{Source: "ui", Tags: []string{"a", "b"}},
	}

	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got Task
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.AgentID, got.AgentID)
	assert.Equal(t, want.Priority, got.Priority)
	assert.Equal(t, want.Metadata.Tags, got.Metadata.Tags)
	require.NotNil(t, got.Result)
	assert.Equal(t, result, *got.Result)
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
