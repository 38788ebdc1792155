package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hupe1980/agentkernel/core"
)

const (
	connectedMessage = "Successfully connected to the kernel WebSocket server"
	pingType         = "ping"
)

// clientFrame is a message received from a WebSocket client.
type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// connObserver delivers hub events to a single WebSocket connection.
type connObserver struct {
	id   string
	conn *websocket.Conn
}

func (o *connObserver) ID() string { return o.id }

func (o *connObserver) Send(ctx context.Context, ev core.Event) error {
	return wsjson.Write(ctx, o.conn, ev)
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !s.originAllowed(origin) {
		s.logger.Warn("ws.rejected", "origin", origin)
		writeError(w, http.StatusForbidden, "Origin not allowed")
		return
	}

	// The origin was checked against the configured list above.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Error("ws.accept.failed", "origin", origin, "error", err.Error())
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	obs := &connObserver{id: core.NewID(), conn: conn}

	err = wsjson.Write(ctx, conn, core.NewEvent(core.EventConnectionStatus, map[string]string{
		"status":  "connected",
		"message": connectedMessage,
	}))
	if err != nil {
		s.logger.Warn("ws.greeting.failed", "observer_id", obs.id, "error", err.Error())
		return
	}

	s.hub.Register(obs)
	defer s.hub.Unregister(obs)
	s.logger.Info("ws.connected", "observer_id", obs.id, "origin", origin, "observers", s.hub.Count())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logDisconnect(obs.id, err)
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			s.logger.Warn("ws.frame.malformed", "observer_id", obs.id)
			continue
		}

		if frame.Type == pingType {
			if err := wsjson.Write(ctx, conn, core.NewEvent(core.EventPong, nil)); err != nil {
				s.logDisconnect(obs.id, err)
				return
			}
			continue
		}

		var payload any = map[string]any{}
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &payload); err != nil {
				s.logger.Warn("ws.frame.malformed", "observer_id", obs.id, "type", frame.Type)
				continue
			}
		}
		s.hub.Broadcast(ctx, frame.Type, payload)
	}
}

func (s *Server) logDisconnect(id string, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		s.logger.Info("ws.disconnected", "observer_id", id)
	default:
		if errors.Is(err, context.Canceled) {
			s.logger.Info("ws.disconnected", "observer_id", id)
			return
		}
		s.logger.Warn("ws.disconnected", "observer_id", id, "error", err.Error())
	}
}
