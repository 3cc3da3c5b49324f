package handler

import (
	"net/http"

	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// DashboardHandler serves management statistics.
type DashboardHandler struct {
	Service *service.StatsService
}

func (h DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.summary)
}

func (h DashboardHandler) summary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	data, err := h.Service.Summary(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalEmployees":      data.TotalEmployees,
		"pendingApprovals":    data.PendingApprovals,
		"activeTasks":         data.ActiveTasks,
		"overdueTasks":        data.OverdueTasks,
		"openIncidents":       data.OpenIncidents,
		"completedExecutions": data.CompletedExecutions,
		"complianceRate":      data.ComplianceRate,
		"trainingProgress":    data.TrainingProgress,
	})
}
