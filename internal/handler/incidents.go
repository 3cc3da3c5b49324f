package handler

import (
	"net/http"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type IncidentHandler struct {
	Service *service.IncidentService
}

func (h IncidentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents", h.list)
	r.Post("/incidents", h.create)
	r.Get("/incidents/{id}", h.get)
	r.Patch("/incidents/{id}", h.updateStatus)
}

func (h IncidentHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	if from != nil && to != nil && from.After(*to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}
	items, err := h.Service.ListIncidents(r.Context(), user.ID, service.IncidentQuery{
		Status: domain.IncidentStatus(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, in := range items {
		resp = append(resp, incidentPayload(in))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h IncidentHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       string           `json:"title"`
		Description string           `json:"description"`
		Location    string           `json:"location"`
		Severity    string           `json:"severity"`
		OccurredAt  string           `json:"occurredAt"`
		Witnesses   []domain.Witness `json:"witnesses"`
		MediaURLs   []string         `json:"mediaUrls"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	in := service.IncidentInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Severity:    domain.IncidentSeverity(req.Severity),
		Witnesses:   req.Witnesses,
		MediaURLs:   req.MediaURLs,
	}
	if req.OccurredAt != "" {
		at, err := parseTime(req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid occurredAt")
			return
		}
		in.OccurredAt = at
	}
	incident, err := h.Service.CreateIncident(r.Context(), user.ID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, incidentPayload(*incident))
}

func (h IncidentHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	incident, err := h.Service.GetIncident(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, incidentPayload(*incident))
}

func (h IncidentHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status     string `json:"status"`
		Resolution string `json:"resolution"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	incident, err := h.Service.UpdateStatus(r.Context(), user.ID, id, domain.IncidentStatus(req.Status), req.Resolution)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, incidentPayload(*incident))
}
