package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/flow"
	"github.com/hupe1980/agentkernel/task"
)

type createTaskRequest struct {
	Description string   `json:"description"`
	AgentID     string   `json:"agent_id"`
	Priority    *int     `json:"priority"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
}

type chatRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	AgentID  string `json:"agent_id"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      s.name,
		"version":   s.version,
		"status":    "running",
		"api_ready": s.router.Available(""),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.router.Descriptors()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Metrics())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter *bool
	if raw := r.URL.Query().Get("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "archived must be a boolean")
			return
		}
		filter = &archived
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.orchestrator.List(filter)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.orchestrator.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	t, err := s.orchestrator.CreateAndRun(r.Context(), task.Request{
		Description: req.Description,
		AgentID:     req.AgentID,
		Priority:    req.Priority,
		Source:      req.Source,
		Tags:        req.Tags,
		ClientInfo:  r.RemoteAddr,
	})
	switch {
	case errors.Is(err, core.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, detailTasksUnavailable)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handleArchive(archived bool) http.HandlerFunc {
	verb, message := s.orchestrator.Unarchive, "Task unarchived"
	if archived {
		verb, message = s.orchestrator.Archive, "Task archived"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verb(r.PathValue("id")); err != nil {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: message})
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = task.DefaultAgentID
	}
	if !s.router.Available(req.AgentID) {
		writeError(w, http.StatusServiceUnavailable, detailChatUnavailable)
		return
	}

	s.logger.Info("chat.request", "agent_id", req.AgentID)
	response, err := s.router.Chat(r.Context(), req.AgentID, req.Message)
	if err != nil {
		s.logger.Error("chat.failed", "agent_id", req.AgentID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Broadcast(r.Context(), core.EventChatResponse, core.ChatResponse{
		AgentID:   req.AgentID,
		Message:   response,
		Timestamp: time.Now(),
	})
	writeJSON(w, http.StatusOK, chatResponse{Response: response, AgentID: req.AgentID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusServiceUnavailable, detailSessionsUnavailable)
		return
	}
	threadID := r.PathValue("thread_id")

	msgs, err := s.loop.History(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	prompt, err := s.loop.Prompt(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"prompt":    prompt,
		"messages":  msgs,
	})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusServiceUnavailable, detailSessionsUnavailable)
		return
	}
	threadID := r.PathValue("thread_id")

	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	res, err := s.loop.Turn(r.Context(), threadID, req.Message)
	switch {
	case errors.Is(err, flow.ErrBlankInput):
		writeError(w, http.StatusBadRequest, "message must not be blank")
		return
	case err != nil:
		s.logger.Error("session.turn.failed", "thread_id", threadID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	toolCalls := res.ToolCalls
	if toolCalls == nil {
		toolCalls = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":  threadID,
		"state":      res.State,
		"response":   res.Response,
		"tool_calls": toolCalls,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.loop == nil {
		writeError(w, http.StatusServiceUnavailable, detailSessionsUnavailable)
		return
	}
	if err := s.loop.Reset(r.Context(), r.PathValue("thread_id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Session deleted"})
}
