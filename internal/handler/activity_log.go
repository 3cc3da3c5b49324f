package handler

import (
	"net/http"

	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type ActivityLogHandler struct {
	Service *service.StatsService
}

func (h ActivityLogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/activity", h.list)
}

func (h ActivityLogHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.Activity(r.Context(), user.ID, queryLimit(r, 100))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, l := range items {
		resp = append(resp, activityPayload(l))
	}
	writeJSON(w, http.StatusOK, resp)
}
