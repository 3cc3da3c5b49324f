package handler

import (
	"net/http"

	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// FCMHandler registers device tokens for push delivery.
type FCMHandler struct {
	Service *service.NotificationService
}

func (h FCMHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications/token", h.register)
}

func (h FCMHandler) register(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.RegisterDevice(r.Context(), user.ID, req.Token, req.Platform); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
