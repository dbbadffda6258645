// ABOUTME: HTTP server exposing the persona-studio state manager as a JSON API
// ABOUTME: Routes agents, conversations, messages, live events, notices, and metrics

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389/persona-studio/internal/conversation"
	"github.com/2389/persona-studio/internal/metrics"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/persona"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Config holds the dependencies of a Server.
type Config struct {
	Service  *conversation.Service
	Personas *persona.Registry
	Notices  *notify.Feed
	Metrics  *metrics.Metrics // Optional
	// MetricsPath mounts the Prometheus handler when Metrics is set
	MetricsPath string
	Logger      *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	svc         *conversation.Service
	personas    *persona.Registry
	notices     *notify.Feed
	metrics     *metrics.Metrics
	metricsPath string
	markdown    goldmark.Markdown
	logger      *slog.Logger
}

// NewServer creates a Server. Pass nil logger for default.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	personas := cfg.Personas
	if personas == nil {
		personas = persona.Builtin()
	}
	notices := cfg.Notices
	if notices == nil {
		notices = notify.NewFeed(0)
	}
	return &Server{
		svc:         cfg.Service,
		personas:    personas,
		notices:     notices,
		metrics:     cfg.Metrics,
		metricsPath: cfg.MetricsPath,
		markdown:    goldmark.New(),
		logger:      logger.With("component", "api"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/personas", s.handleListPersonas)

	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)

	mux.HandleFunc("GET /api/agents/{id}/conversation", s.handleGetConversation)
	mux.HandleFunc("DELETE /api/agents/{id}/conversation", s.handleClearConversation)
	mux.HandleFunc("POST /api/agents/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/agents/{id}/events", s.handleEvents)

	mux.HandleFunc("GET /api/active", s.handleGetActive)
	mux.HandleFunc("PUT /api/active", s.handleSetActive)

	mux.HandleFunc("GET /api/notices", s.handleListNotices)

	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle("GET "+s.metricsPath, s.metrics.Handler())
	}

	return mux
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// sendServiceError maps service errors onto HTTP status codes.
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrAgentNotFound):
		s.sendJSONError(w, http.StatusNotFound, "agent not found")
	case errors.Is(err, conversation.ErrEmptyMessage):
		s.sendJSONError(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, conversation.ErrInvalidAgent):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
