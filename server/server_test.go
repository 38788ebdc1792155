package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/broadcast"
	"github.com/hupe1980/agentkernel/checkpoint"
	"github.com/hupe1980/agentkernel/flow"
	"github.com/hupe1980/agentkernel/model"
	"github.com/hupe1980/agentkernel/registry"
	"github.com/hupe1980/agentkernel/task"
)

const testOrigin = "http://localhost:3000"

type fixture struct {
	srv  *httptest.Server
	hub  *broadcast.Hub
	llm  *model.ScriptedModel
	orch *task.Orchestrator
}

func newFixture(t *testing.T, c agent.Capability) *fixture {
	t.Helper()

	reg := registry.New[agent.Capability]()
	if c != nil {
		reg.Register(agent.DefaultBacking, c)
	}
	router := agent.NewRouter(reg)
	hub := broadcast.NewHub()
	orch := task.NewOrchestrator(router, hub)
	llm := model.NewScriptedModel()
	loop := flow.NewLoop(llm, checkpoint.NewInMemoryStore(), func(o *flow.LoopOptions) {
		o.SystemPrompt = "You are Thor."
	})

	s := New(orch, router, hub, func(o *Options) {
		o.AllowedOrigins = []string{testOrigin}
		o.Loop = loop
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, hub: hub, llm: llm, orch: orch}
}

func echoCapability() agent.Capability {
	return agent.CapabilityFuncs{
		ChatFunc: func(_ context.Context, msg string) (string, error) { return "echo: " + msg, nil },
		RunTaskFunc: func(_ context.Context, _, desc string) (string, error) {
			return "R:" + desc, nil
		},
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(bytes.TrimSpace(data)) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{testOrigin}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	greeting := readFrame(t, conn)
	require.Equal(t, "connection_status", greeting["type"])
	require.Equal(t, "connected", greeting["data"].(map[string]any)["status"])

	require.Eventually(t, func() bool { return f.hub.Count() > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t, echoCapability())

	status, body := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, DefaultName, body["name"])
	assert.Equal(t, "2.0.0", body["version"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, true, body["api_ready"])

	status, body = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAgents(t *testing.T) {
	f := newFixture(t, echoCapability())

	status, body := f.do(t, http.MethodGet, "/agents", "")
	require.Equal(t, http.StatusOK, status)
	agents := body["agents"].([]any)
	require.Len(t, agents, len(agent.DefaultPersonas()))

	first := agents[0].(map[string]any)
	assert.Equal(t, "assistant", first["id"])
	assert.Equal(t, "Bragi", first["name"])
	assert.Equal(t, "active", first["status"])
}

func TestCreateTask_LifecycleEvents(t *testing.T) {
	f := newFixture(t, echoCapability())
	conn := f.dial(t)

	status, body := f.do(t, http.MethodPost, "/tasks", `{"description":"Sum 2+2"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "R:Sum 2+2", body["result"])
	assert.Equal(t, "assistant", body["agent_id"])
	assert.EqualValues(t, 1, body["priority"])
	assert.Equal(t, false, body["archived"])

	want := []string{"task_created", "task_progress", "agent_activity", "task_progress", "task_update"}
	var got []string
	var frames []map[string]any
	for range want {
		frame := readFrame(t, conn)
		got = append(got, frame["type"].(string))
		frames = append(frames, frame)
	}
	assert.Equal(t, want, got)

	started := frames[1]["data"].(map[string]any)
	assert.Equal(t, "started", started["status"])
	assert.InDelta(t, 0.1, started["progress"], 1e-9)
	assert.Equal(t, "Initializing task processing", started["current_action"])

	update := frames[4]["data"].(map[string]any)
	assert.Equal(t, body["id"], update["id"])
	assert.Equal(t, "completed", update["status"])

	_, metrics := f.do(t, http.MethodGet, "/metrics", "")
	assert.EqualValues(t, 1, metrics["tasks_completed"])
	assert.EqualValues(t, 0, metrics["tasks_failed"])
}

func TestCreateTask_Unavailable(t *testing.T) {
	f := newFixture(t, nil)

	status, body := f.do(t, http.MethodPost, "/tasks", `{"description":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, detailTasksUnavailable, body["detail"])

	_, list := f.do(t, http.MethodGet, "/tasks", "")
	assert.Empty(t, list["tasks"])

	_, root := f.do(t, http.MethodGet, "/", "")
	assert.Equal(t, false, root["api_ready"])
}

func TestCreateTask_FailureReturns200(t *testing.T) {
	f := newFixture(t, agent.CapabilityFuncs{
		RunTaskFunc: func(context.Context, string, string) (string, error) {
			return "", errors.New("model timeout")
		},
	})

	conn := f.dial(t)

	status, body := f.do(t, http.MethodPost, "/tasks", `{"description":"x","agent_id":"coordinator"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, "model timeout", body["result"])

	frames := make([]map[string]any, 5)
	for i := range frames {
		frames[i] = readFrame(t, conn)
	}
	assert.Equal(t, "agent_activity", frames[2]["type"])
	assert.Equal(t, "failed", frames[3]["data"].(map[string]any)["status"])
	assert.Equal(t, "task_update", frames[4]["type"])
	update := frames[4]["data"].(map[string]any)
	assert.Equal(t, body["id"], update["id"])
	assert.Equal(t, "failed", update["status"])
	assert.Equal(t, "model timeout", update["result"])

	_, metrics := f.do(t, http.MethodGet, "/metrics", "")
	assert.EqualValues(t, 1, metrics["tasks_failed"])
}

func TestCreateTask_ExplicitZeroPriority(t *testing.T) {
	f := newFixture(t, echoCapability())

	_, body := f.do(t, http.MethodPost, "/tasks", `{"description":"x","priority":0}`)
	assert.EqualValues(t, 0, body["priority"])

	_, body = f.do(t, http.MethodPost, "/tasks", `{"description":"x"}`)
	assert.EqualValues(t, 1, body["priority"])
}

func TestCreateTask_BadJSON(t *testing.T) {
	f := newFixture(t, echoCapability())

	status, body := f.do(t, http.MethodPost, "/tasks", `{"description":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["detail"])
}

func TestCreateTask_EmptyBody(t *testing.T) {
	f := newFixture(t, echoCapability())

	status, body := f.do(t, http.MethodPost, "/tasks", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", body["description"])
	assert.Equal(t, "completed", body["status"])
}

func TestTasks_GetArchiveFilter(t *testing.T) {
	f := newFixture(t, echoCapability())

	_, a := f.do(t, http.MethodPost, "/tasks", `{"description":"a"}`)
	_, b := f.do(t, http.MethodPost, "/tasks", `{"description":"b","tags":["x"]}`)
	aID, bID := a["id"].(string), b["id"].(string)

	status, got := f.do(t, http.MethodGet, "/tasks/"+bID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"x"}, got["metadata"].(map[string]any)["tags"])

	status, res := f.do(t, http.MethodPost, "/tasks/"+aID+"/archive", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", res["status"])
	assert.Equal(t, "Task archived", res["message"])

	_, archived := f.do(t, http.MethodGet, "/tasks?archived=true", "")
	require.Len(t, archived["tasks"], 1)
	assert.Equal(t, aID, archived["tasks"].([]any)[0].(map[string]any)["id"])

	_, active := f.do(t, http.MethodGet, "/tasks?archived=false", "")
	require.Len(t, active["tasks"], 1)
	assert.Equal(t, bID, active["tasks"].([]any)[0].(map[string]any)["id"])

	_, all := f.do(t, http.MethodGet, "/tasks", "")
	assert.Len(t, all["tasks"], 2)

	status, res = f.do(t, http.MethodPost, "/tasks/"+aID+"/unarchive", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Task unarchived", res["message"])

	status, res = f.do(t, http.MethodPost, "/tasks/missing/archive", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", res["detail"])

	status, _ = f.do(t, http.MethodGet, "/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/tasks?archived=maybe", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChat(t *testing.T) {
	f := newFixture(t, echoCapability())
	conn := f.dial(t)

	status, body := f.do(t, http.MethodPost, "/chat", `{"message":"hi","agent_id":"coordinator"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Greetings! I am Odin. echo: hi", body["response"])
	assert.Equal(t, "coordinator", body["agent_id"])

	frame := readFrame(t, conn)
	assert.Equal(t, "chat_response", frame["type"])
	assert.Equal(t, body["response"], frame["data"].(map[string]any)["message"])
}

func TestChat_Errors(t *testing.T) {
	f := newFixture(t, nil)
	status, body := f.do(t, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, detailChatUnavailable, body["detail"])

	f = newFixture(t, agent.CapabilityFuncs{
		ChatFunc: func(context.Context, string) (string, error) { return "", errors.New("rate limited") },
	})
	status, body = f.do(t, http.MethodPost, "/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["detail"], "rate limited")
}

func TestSessions(t *testing.T) {
	f := newFixture(t, echoCapability())
	f.llm.Push(model.Reply("Hello there"))

	status, body := f.do(t, http.MethodGet, "/sessions/t1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "What can I help you with?", body["prompt"])
	assert.Len(t, body["messages"], 1)

	status, body = f.do(t, http.MethodPost, "/sessions/t1/messages", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "await_human_input", body["state"])
	assert.Equal(t, "Hello there", body["response"])
	assert.Equal(t, []any{}, body["tool_calls"])

	_, body = f.do(t, http.MethodGet, "/sessions/t1", "")
	assert.Equal(t, "Hello there", body["prompt"])
	assert.Len(t, body["messages"], 3)

	status, body = f.do(t, http.MethodPost, "/sessions/t1/messages", `{"message":"exit"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "terminated", body["state"])

	status, _ = f.do(t, http.MethodPost, "/sessions/t1/messages", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/sessions/t1", "")
	require.Equal(t, http.StatusOK, status)
	_, body = f.do(t, http.MethodGet, "/sessions/t1", "")
	assert.Len(t, body["messages"], 1)
}

func TestWebSocket_PingPong(t *testing.T) {
	f := newFixture(t, echoCapability())
	conn := f.dial(t)

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestWebSocket_RelayAndMalformed(t *testing.T) {
	f := newFixture(t, echoCapability())
	sender := f.dial(t)
	receiver := f.dial(t)
	require.Eventually(t, func() bool { return f.hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, sender.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, wsjson.Write(ctx, sender, map[string]any{
		"type": "custom_note",
		"data": map[string]any{"text": "hello"},
	}))

	frame := readFrame(t, receiver)
	assert.Equal(t, "custom_note", frame["type"])
	assert.Equal(t, "hello", frame["data"].(map[string]any)["text"])
}

func TestWebSocket_RejectsOrigin(t *testing.T) {
	f := newFixture(t, echoCapability())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, f.hub.Count())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, echoCapability())

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
}
