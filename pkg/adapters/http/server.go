package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mitchellh/mapstructure"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/internal/logging"
	"github.com/enrollkit/enrollkit/pkg/domain"
	"github.com/enrollkit/enrollkit/pkg/queryguard"
)

// Engine defines the surface this adapter exposes over HTTP.
type Engine interface {
	Step(ctx context.Context, sessionID, userID, message string) (*enrollkit.TurnResult, error)
	Resume(ctx context.Context, sessionID string, decision domain.Decision) (*enrollkit.TurnResult, error)
	State(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	Delete(ctx context.Context, sessionID string) error
	Pending(ctx context.Context) ([]*domain.InterruptRequest, error)
	Ask(ctx context.Context, question string) (*queryguard.Answer, error)
}

// Observer receives request-level events the engine hooks cannot see:
// security rejections and query attempt outcomes.
type Observer interface {
	RecordRejection(layer string)
	RecordQueryAttempt(status string)
}

// Server exposes the engine over a JSON REST API.
type Server struct {
	engine   Engine
	metrics  http.Handler
	observer Observer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts a scrape handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithObserver registers an observer for rejections and query attempts.
func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithLogger sets a structured logger for request handling.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/sessions/{sessionID}/step", s.handleStep)
	r.Post("/sessions/{sessionID}/resume", s.handleResume)
	r.Get("/sessions/{sessionID}", s.handleState)
	r.Delete("/sessions/{sessionID}", s.handleDelete)
	r.Get("/interrupts", s.handlePending)
	r.Post("/queries", s.handleQuery)
	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

type stepRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body stepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		body.UserID = sessionID
	}

	res, err := s.engine.Step(r.Context(), sessionID, body.UserID, body.Message)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if res.Rejected && s.observer != nil {
		s.observer.RecordRejection(res.Layer)
	}
	s.writeJSON(w, http.StatusOK, res)
}

type resumeRequest struct {
	Decision map[string]any `json:"decision"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var decision domain.Decision
	if err := mapstructure.WeakDecode(body.Decision, &decision); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid decision payload")
		return
	}

	res, err := s.engine.Resume(r.Context(), sessionID, decision)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.State(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.Pending(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if pending == nil {
		pending = []*domain.InterruptRequest{}
	}
	s.writeJSON(w, http.StatusOK, pending)
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.engine.Ask(r.Context(), body.Question)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if s.observer != nil {
		status := "ok"
		if answer.Refused != "" {
			status = "refused"
		}
		s.observer.RecordQueryAttempt(status)
	}
	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "enrollkit",
		"version": enrollkit.Version,
	})
}

// writeEngineError maps domain errors to HTTP statuses. Protocol misuse is
// the client's fault and gets a 4xx; everything else is a 500.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var terminal *domain.TerminalStateError
	var stale *domain.StaleResumeError
	var already *domain.AlreadyResolvedError

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrNoPendingInterrupt):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &terminal):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stale):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &already):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
