package handler

import (
	"net/http"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves the current profile and the approval queue.
type UserHandler struct {
	Users  *service.UserService
	Access *service.AccessService
}

func (h UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Patch("/me/onboarding", h.onboarding)
	r.Get("/users", h.list)
	r.Get("/users/{id}", h.get)
	r.Post("/users/{id}/approve", h.approve)
	r.Post("/users/{id}/reject", h.reject)
	r.Patch("/users/{id}/status", h.setStatus)
}

func (h UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := h.Access.Resolve(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  userPayload(res.User),
		"gates": gatesPayload(res.Gates),
	})
}

func (h UserHandler) onboarding(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Phone                 string `json:"phone"`
		Address               string `json:"address"`
		Position              string `json:"position"`
		EmergencyContactName  string `json:"emergencyContactName"`
		EmergencyContactPhone string `json:"emergencyContactPhone"`
		StartDate             string `json:"startDate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := service.ParseStartDate(req.StartDate)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	u, err := h.Users.CompleteOnboarding(r.Context(), user.ID, domain.OnboardingProfile{
		Phone:                 req.Phone,
		Address:               req.Address,
		Position:              req.Position,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		StartDate:             start,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload(*u))
}

func (h UserHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	users, err := h.Users.List(r.Context(), user.ID, domain.UserStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(users))
	for _, u := range users {
		resp = append(resp, userPayload(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h UserHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.Users.Get(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload(*u))
}

func (h UserHandler) approve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.Users.Approve(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload(*u))
}

func (h UserHandler) reject(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.Reject(r.Context(), user.ID, id, req.Reason)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload(*u))
}

func (h UserHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.Users.SetStatus(r.Context(), user.ID, id, domain.UserStatus(req.Status))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userPayload(*u))
}
