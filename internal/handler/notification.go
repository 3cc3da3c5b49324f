package handler

import (
	"net/http"

	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	Service *service.NotificationService
}

func (h NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.list)
	r.Post("/notifications/{id}/read", h.markRead)
}

func (h NotificationHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), user.ID, queryLimit(r, 200))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, n := range items {
		resp = append(resp, notificationPayload(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h NotificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.MarkRead(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
