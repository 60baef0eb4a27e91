package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/strata/internal/collab"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxCommandBytes = 4 << 20

// Coordinator is the part of the collaboration coordinator the server uses.
type Coordinator interface {
	Route(ctx context.Context, projectID string, cmd collab.Command) (*collab.CommandResult, error)
	Health(projectID string) domain.Health
	Snapshot(projectID string) (*collab.Snapshot, bool)
	Projects() []string
}

// Server exposes a Coordinator over HTTP, SSE and WebSocket.
type Server struct {
	coord          Coordinator
	streams        *StreamManager
	logger         *slog.Logger
	gatherer       prometheus.Gatherer
	commandTimeout time.Duration
	upgrader       websocket.Upgrader
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCommandTimeout bounds how long a request waits for its command.
// 0 waits for as long as the client does.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) { s.commandTimeout = d }
}

// NewHandler creates the HTTP handler. streams must be the Broadcaster the
// coordinator publishes to.
func NewHandler(coord Coordinator, streams *StreamManager, opts ...Option) http.Handler {
	s := &Server{
		coord:    coord,
		streams:  streams,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/projects/{project}", func(r chi.Router) {
		r.Post("/commands", s.PostCommand)
		r.Get("/health", s.GetProjectHealth)
		r.Get("/snapshot", s.GetSnapshot)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/ws", s.Socket)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "projects": len(s.coord.Projects())}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.Error("health response encode failed", "err", err)
	}
}

// PostCommand handles POST /projects/{project}/commands.
func (s *Server) PostCommand(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project")

	var env collab.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes)).Decode(&env); err != nil {
		s.badRequest(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	cmd, err := env.Decode()
	if err != nil {
		s.badRequest(w, err)
		return
	}

	res, err := s.route(r.Context(), projectID, cmd)
	if err != nil {
		s.fail(w, projectID, cmd, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, res); err != nil {
		s.logger.Error("command response encode failed", "err", err)
	}
}

// GetProjectHealth handles GET /projects/{project}/health.
func (s *Server) GetProjectHealth(w http.ResponseWriter, r *http.Request) {
	h := s.coord.Health(chi.URLParam(r, "project"))
	if err := writeJSON(w, http.StatusOK, h); err != nil {
		s.logger.Error("health response encode failed", "err", err)
	}
}

// GetSnapshot handles GET /projects/{project}/snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project")
	snap, ok := s.coord.Snapshot(projectID)
	if !ok {
		body := errorBody{Error: "project " + projectID + " has no active actor", Status: http.StatusNotFound}
		_ = writeJSON(w, body.Status, body)
		return
	}
	if err := writeJSON(w, http.StatusOK, snap); err != nil {
		s.logger.Error("snapshot response encode failed", "err", err)
	}
}

// SubscribeEvents handles GET /projects/{project}/events (SSE). The
// connection is a session of the project for as long as it stays open.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("streaming not supported")
		return
	}

	projectID := chi.URLParam(r, "project")
	sessionID := sessionFrom(r)

	deltas, unsubscribe := s.streams.Subscribe(projectID)
	defer unsubscribe()

	if _, err := s.route(r.Context(), projectID, collab.Subscribe{SessionID: sessionID}); err != nil {
		s.fail(w, projectID, collab.Subscribe{}, err)
		return
	}
	defer s.leave(r.Context(), projectID, sessionID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE session opened", "project_id", projectID, "session_id", sessionID)
	fmt.Fprintf(w, "event: ready\ndata: {\"session_id\":%q}\n\n", sessionID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE session closed", "project_id", projectID, "session_id", sessionID)
			return
		case delta, ok := <-deltas:
			if !ok {
				return
			}
			data, err := json.Marshal(delta)
			if err != nil {
				s.logger.Error("delta encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", delta.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) route(ctx context.Context, projectID string, cmd collab.Command) (*collab.CommandResult, error) {
	if s.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.commandTimeout)
		defer cancel()
	}
	return s.coord.Route(ctx, projectID, cmd)
}

// leave ends a session once its connection is gone.
func (s *Server) leave(ctx context.Context, projectID, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := s.coord.Route(ctx, projectID, collab.Unsubscribe{SessionID: sessionID})
	if err != nil && !errors.Is(err, domain.ErrActorStopped) {
		s.logger.Warn("failed to end session", "project_id", projectID, "session_id", sessionID, "err", err)
	}
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("invalid command request", "err", err)
	body := errorBody{Error: err.Error(), Status: http.StatusBadRequest}
	_ = writeJSON(w, body.Status, body)
}

func (s *Server) fail(w http.ResponseWriter, projectID string, cmd collab.Command, err error) {
	body := describe(err)
	if body.Status >= http.StatusInternalServerError {
		s.logger.Error("command failed", "project_id", projectID, "command", cmd.Name(), "err", err)
	} else {
		s.logger.Debug("command rejected", "project_id", projectID, "command", cmd.Name(), "status", body.Status, "err", err)
	}
	_ = writeJSON(w, body.Status, body)
}

func sessionFrom(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	return uuid.NewString()
}
