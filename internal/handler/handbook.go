package handler

import (
	"net"
	"net/http"
	"time"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type HandbookHandler struct {
	Service *service.HandbookService
}

func (h HandbookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/handbook/sections", h.listSections)
	r.Post("/handbook/sections", h.createSection)
	r.Get("/handbook/sections/{id}", h.getSection)
	r.Put("/handbook/sections/{id}/policies/{policyId}", h.setPolicy)
	r.Post("/handbook/sections/{id}/sign", h.sign)
	r.Get("/handbook/progress", h.progress)
}

func (h HandbookHandler) listSections(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	states, err := h.Service.ListSections(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(states))
	for _, st := range states {
		resp = append(resp, sectionStatePayload(st))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h HandbookHandler) createSection(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		SectionNumber     int    `json:"sectionNumber"`
		Title             string `json:"title"`
		Description       string `json:"description"`
		RequiresSignature *bool  `json:"requiresSignature"`
		Policies          []struct {
			Title    string `json:"title"`
			Content  string `json:"content"`
			Required *bool  `json:"required"`
		} `json:"policies"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	in := service.SectionInput{
		SectionNumber:     req.SectionNumber,
		Title:             req.Title,
		Description:       req.Description,
		RequiresSignature: req.RequiresSignature == nil || *req.RequiresSignature,
	}
	for _, p := range req.Policies {
		in.Policies = append(in.Policies, service.PolicyInput{
			Title:    p.Title,
			Content:  p.Content,
			Required: p.Required == nil || *p.Required,
		})
	}
	section, err := h.Service.CreateSection(r.Context(), user.ID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sectionPayload(*section))
}

func (h HandbookHandler) getSection(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.Service.GetSection(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionStatePayload(*st))
}

func (h HandbookHandler) setPolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyId")
	if !ok {
		return
	}
	var req struct {
		Completed *bool `json:"completed"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	st, err := h.Service.SetPolicyCompletion(r.Context(), user.ID, sectionID, policyID, *req.Completed)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionStatePayload(*st))
}

func (h HandbookHandler) sign(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	sectionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		SignatureData string `json:"signatureData"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sig, err := h.Service.SignSection(r.Context(), service.SignInput{
		UserID:        user.ID,
		SectionID:     sectionID,
		SignatureData: req.SignatureData,
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signaturePayload(*sig))
}

func (h HandbookHandler) progress(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Progress(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalSections":     p.TotalSections,
		"completedSections": p.CompletedSections,
		"percentage":        p.Percentage,
		"handbookCompleted": p.HandbookCompleted,
		"gates":             gatesPayload(p.Gates),
	})
}

func signaturePayload(s domain.Signature) map[string]any {
	return map[string]any{
		"id":        s.ID,
		"sectionId": s.SectionID,
		"userId":    s.UserID,
		"ipAddress": s.IPAddress,
		"signedAt":  s.SignedAt.UTC().Format(time.RFC3339),
	}
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// rewritten from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
