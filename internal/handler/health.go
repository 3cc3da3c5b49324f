package handler

import (
	"context"
	"net/http"
	"time"

	"staffbook-backend/internal/ports"
	"github.com/go-chi/chi/v5"
)

// HealthHandler reports readiness.
type HealthHandler struct {
	DB ports.HealthChecker
}

func (h HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.DB.Health(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeRawJSON(w, code, map[string]string{
		"status": status,
	})
}
