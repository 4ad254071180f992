// Package chi exposes the HTTP API: the similarity search endpoint and the
// backfill trigger.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/plotpipe/internal/domain"
	"github.com/kailas-cloud/plotpipe/internal/logger"
	backfilluc "github.com/kailas-cloud/plotpipe/internal/usecase/backfill"
	healthuc "github.com/kailas-cloud/plotpipe/internal/usecase/health"
	queryuc "github.com/kailas-cloud/plotpipe/internal/usecase/query"
)

// Server wires the use cases to HTTP handlers.
type Server struct {
	query    *queryuc.Service
	backfill *backfilluc.Service
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates the HTTP API server.
func NewServer(
	query *queryuc.Service,
	backfill *backfilluc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{query: query, backfill: backfill, health: health, logger: logger}
}

// Routes mounts the API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.handleSearch)
	r.Post("/backfill", s.handleBackfill)
	r.Get("/healthz", s.handleHealth)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchHit struct {
	ID    string  `json:"_id"`
	Title string  `json:"title"`
	Plot  string  `json:"plot"`
	Score float64 `json:"score"`
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hits, err := s.query.Search(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	resp := make([]searchHit, len(hits))
	for i, h := range hits {
		resp[i] = searchHit{ID: h.ID, Title: h.Title, Plot: h.Plot, Score: h.Score}
	}
	writeJSON(w, http.StatusOK, resp)
}

type backfillResponse struct {
	Read int `json:"read"`
	Sent int `json:"sent"`
}

// handleBackfill handles POST /backfill. The optional count parameter must be
// a positive integer; absence means the configured default.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, domain.ErrInvalidLimit.Error())
			return
		}
		limit = n
	}

	read, sent, err := s.backfill.Run(r.Context(), limit)
	if err != nil {
		s.handleDomainError(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, backfillResponse{Read: read, Sent: sent})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleDomainError maps caller errors to 400 and everything else to a
// generic 500. Internal detail never reaches the caller; the full chain goes
// to the request log.
func (s *Server) handleDomainError(r *http.Request, w http.ResponseWriter, err error) {
	log := logger.FromContext(r.Context())

	switch {
	case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrInvalidLimit):
		log.Warn("client error", zap.Error(err))
		writeError(w, http.StatusBadRequest, safeMessage(err))
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// safeMessage returns a sentinel error message without exposing internals.
func safeMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidLimit,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
