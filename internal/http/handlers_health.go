package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	applog "roomies/internal/log"
)

var errNoLedger = errors.New("ledger not configured")

// handleHealth checks that the database answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Health check failed", applog.FieldError, err)
		NewResponse().Status(http.StatusInternalServerError).
			JSON(map[string]string{"status": "error", "message": err.Error()}).
			Write(w)
		return
	}
	NewResponse().JSON(map[string]string{"status": "ok", "database": "connected"}).Write(w)
}

// handleLive is the liveness probe; it never touches dependencies.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether templates and the database are usable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if len(s.pages) == 0 {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"rejected":       s.limiter.Hits(),
	}
	sec := s.detector.GetMetrics()
	checks["security"] = map[string]any{
		"suspicious_requests": sec.SuspiciousRequests,
		"blocked_requests":    sec.BlockedRequests,
	}
	checks["requests"] = s.tracer.Stats().TotalRequests

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) ping(ctx context.Context) error {
	if s.ledger == nil {
		return errNoLedger
	}
	return s.ledger.Ping(ctx)
}
