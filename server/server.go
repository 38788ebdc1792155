// Package server exposes the kernel over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/broadcast"
	"github.com/hupe1980/agentkernel/flow"
	"github.com/hupe1980/agentkernel/logging"
	"github.com/hupe1980/agentkernel/task"
)

// Defaults reported by the root endpoint.
const (
	DefaultName    = "Agent Kernel API"
	DefaultVersion = "2.0.0"
)

// Error details returned when the default capability is not registered.
const (
	detailTasksUnavailable    = "Task processing functionality is unavailable at this moment."
	detailChatUnavailable     = "Chat functionality is unavailable at this moment."
	detailSessionsUnavailable = "Session functionality is unavailable at this moment."
)

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	// AllowedOrigins is applied to CORS and to WebSocket upgrades. An entry
	// of "*" allows every origin.
	AllowedOrigins []string
	// Loop serves the /sessions endpoints; nil disables them.
	Loop   *flow.Loop
	Logger logging.Logger
}

// Server wires the orchestrator, router, hub and reasoning loop to HTTP
// routes.
type Server struct {
	orchestrator *task.Orchestrator
	router       *agent.Router
	hub          *broadcast.Hub
	loop         *flow.Loop
	logger       logging.Logger

	name           string
	version        string
	allowedOrigins []string

	handler http.Handler
}

// New creates a server. Routes are registered immediately.
func New(orchestrator *task.Orchestrator, router *agent.Router, hub *broadcast.Hub, optFns ...func(o *Options)) *Server {
	opts := Options{
		Name:    DefaultName,
		Version: DefaultVersion,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		orchestrator:   orchestrator,
		router:         router,
		hub:            hub,
		loop:           opts.Loop,
		logger:         logging.OrNoOp(opts.Logger),
		name:           opts.Name,
		version:        opts.Version,
		allowedOrigins: append([]string(nil), opts.AllowedOrigins...),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	})
	s.handler = s.logRequests(c.Handler(mux))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/archive", s.handleArchive(true))
	mux.HandleFunc("POST /tasks/{id}/unarchive", s.handleArchive(false))

	mux.HandleFunc("POST /chat", s.handleChat)

	mux.HandleFunc("GET /sessions/{thread_id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{thread_id}/messages", s.handlePostMessage)
	mux.HandleFunc("DELETE /sessions/{thread_id}", s.handleDeleteSession)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the root handler including CORS and request logging.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", addr, "allowed_origins", s.allowedOrigins)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server.shutdown", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("http.request", "method", r.Method, "path", r.URL.Path, "origin", r.Header.Get("Origin"))
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"detail":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
