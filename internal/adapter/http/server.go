package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
)

const maxBodyBytes = 1 << 20

// Planner is the subset of planner.Service the API serves.
type Planner interface {
	Recommend(ctx context.Context, req planner.RecommendationRequest) (*planner.RecommendationResponse, error)
	RecommendBatch(ctx context.Context, reqs []planner.RecommendationRequest) []planner.BatchItem
	FreeTime(ctx context.Context, req planner.FreeTimeRequest) (*planner.FreeTimeResponse, error)
	CheckConflict(ctx context.Context, req planner.ConflictCheckRequest) (*domain.ConflictResult, error)
	Schedule(ctx context.Context, req planner.ScheduleRequest) (*planner.ScheduleResponse, error)
}

// Server exposes the planning API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	planner    Planner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 planning routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, p Planner, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		planner: p,
		logger:  logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", s.handleRecommend)
		r.Post("/recommendations/batch", s.handleRecommendBatch)
		r.Post("/free-time", s.handleFreeTime)
		r.Post("/conflicts", s.handleConflicts)
		r.Post("/events", s.handleSchedule)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req planner.RecommendationRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.planner.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type batchResult struct {
	Response *planner.RecommendationResponse `json:"response,omitempty"`
	Error    string                          `json:"error,omitempty"`
}

func (s *Server) handleRecommendBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []planner.RecommendationRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	items := s.planner.RecommendBatch(r.Context(), reqs)
	out := make([]batchResult, len(items))
	for i, item := range items {
		out[i].Response = item.Response
		if item.Err != nil {
			out[i].Error = item.Err.Error()
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleFreeTime(w http.ResponseWriter, r *http.Request) {
	var req planner.FreeTimeRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.planner.FreeTime(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	var req planner.ConflictCheckRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.planner.CheckConflict(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// handleSchedule answers 201 when the event was written and 409 when it was
// rejected, either by the pre-check or by the calendar at write time.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req planner.ScheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.planner.Schedule(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrSchedulingConflict) && resp != nil:
		sharedobs.WriteJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "result": resp})
	case err != nil:
		s.writeError(w, r, err)
	case resp.Stage == domain.StageRejected:
		sharedobs.WriteJSON(w, http.StatusConflict, resp)
	default:
		sharedobs.WriteJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode body: %w", planner.ErrInvalidRequest, err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, planner.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidInterval),
		errors.Is(err, domain.ErrOutOfRangeInterval):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSchedulingConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
