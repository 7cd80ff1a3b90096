package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/odyssey-one/sovereign-core/pkg/observability"
	"github.com/odyssey-one/sovereign-core/pkg/pipeline"
	"github.com/odyssey-one/sovereign-core/pkg/store"
)

// Server exposes the pipeline over HTTP.
type Server struct {
	orch    *pipeline.Orchestrator
	audit   store.AuditStore
	metrics *observability.Provider
	logger  *slog.Logger
}

// NewServer wires the HTTP surface.
func NewServer(orch *pipeline.Orchestrator, audit store.AuditStore,
	metrics *observability.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, audit: audit, metrics: metrics, logger: logger}
}

// Routes returns the server's handler with rate limiting applied.
func (s *Server) Routes(limiter *RateLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/submit", s.handleSubmit)
	mux.HandleFunc("GET /v1/audit/{correlation_id}", s.handleAudit)
	if limiter == nil {
		return mux
	}
	return limiter.Middleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if err := s.audit.VerifyChain(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "audit chain verification failed",
			slog.String("error", err.Error()))
		status["status"] = "degraded"
		status["audit"] = "chain verification failed"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "request body is not valid JSON")
		return
	}

	start := time.Now()
	res, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			WriteBadRequest(w, err.Error())
			return
		}
		// Anything past input validation is the server's failure, not the
		// caller's.
		s.logger.ErrorContext(r.Context(), "submit failed",
			slog.String("error", err.Error()))
		WriteInternalError(w)
		return
	}
	if s.metrics != nil {
		groupSize := 0
		if res.Generation != nil {
			groupSize = res.Generation.GroupSize
		}
		s.metrics.RecordRequest(r.Context(), res.Approved, time.Since(start), groupSize)
	}

	w.Header().Set("Content-Type", "application/json")
	if !res.Approved {
		// The decision was made; 422 signals a denied command, not a
		// malformed request.
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	correlationID := r.PathValue("correlation_id")
	entries, err := s.audit.ByCorrelation(r.Context(), correlationID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "audit read failed",
			slog.String("error", err.Error()))
		WriteInternalError(w)
		return
	}
	if len(entries) == 0 {
		WriteNotFound(w, "no audit trail for correlation id")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"correlation_id": correlationID,
		"entries":        entries,
	})
}
