package http

import (
	"context"
	"net/http"

	"github.com/aretw0/strata/internal/collab"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Socket message types.
const (
	MsgReady  = "ready"
	MsgDelta  = "delta"
	MsgResult = "result"
	MsgError  = "error"
)

// SocketRequest is a command envelope sent over the socket. ID is echoed
// back on the reply.
type SocketRequest struct {
	ID string `json:"id,omitempty"`
	collab.Envelope
}

// SocketMessage is everything the server writes to a socket.
type SocketMessage struct {
	Type      string                `json:"type"`
	ID        string                `json:"id,omitempty"`
	SessionID string                `json:"session_id,omitempty"`
	Result    *collab.CommandResult `json:"result,omitempty"`
	Delta     *domain.ProjectDelta  `json:"delta,omitempty"`
	Error     *errorBody            `json:"error,omitempty"`
}

// Socket handles GET /projects/{project}/ws. Deltas of the project are
// pushed to the client, and command envelopes read from it are routed in
// order.
func (s *Server) Socket(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project")
	sessionID := sessionFrom(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade the websocket", "err", err)
		return
	}
	defer conn.Close()

	deltas, unsubscribe := s.streams.Subscribe(projectID)
	defer unsubscribe()

	if _, err := s.route(r.Context(), projectID, collab.Subscribe{SessionID: sessionID}); err != nil {
		body := describe(err)
		_ = conn.WriteJSON(SocketMessage{Type: MsgError, Error: &body})
		return
	}
	defer s.leave(r.Context(), projectID, sessionID)

	if err := conn.WriteJSON(SocketMessage{Type: MsgReady, SessionID: sessionID}); err != nil {
		return
	}
	s.logger.Info("websocket session opened", "project_id", projectID, "session_id", sessionID)

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	replies := make(chan SocketMessage, streamBuffer)
	go s.readCommands(ctx, stop, conn, projectID, replies)

	// Only this goroutine writes to conn.
	for {
		var msg SocketMessage
		select {
		case <-ctx.Done():
			s.logger.Info("websocket session closed", "project_id", projectID, "session_id", sessionID)
			return
		case delta, ok := <-deltas:
			if !ok {
				return
			}
			msg = SocketMessage{Type: MsgDelta, Delta: &delta}
		case msg = <-replies:
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn("failed to write websocket message", "err", err)
			return
		}
	}
}

func (s *Server) readCommands(ctx context.Context, stop context.CancelFunc, conn *websocket.Conn, projectID string, replies chan<- SocketMessage) {
	defer stop()
	for {
		var req SocketRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		reply := SocketMessage{Type: MsgResult, ID: req.ID}
		cmd, err := req.Decode()
		if err == nil {
			reply.Result, err = s.route(ctx, projectID, cmd)
		}
		if err != nil {
			body := describe(err)
			if cmd == nil {
				body.Status = http.StatusBadRequest
			}
			reply = SocketMessage{Type: MsgError, ID: req.ID, Error: &body}
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}
