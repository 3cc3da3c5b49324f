package handler

import (
	"context"
	"net/http"
	"time"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type SOPHandler struct {
	Service *service.SOPService
}

func (h SOPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sops", h.list)
	r.Post("/sops", h.create)
	r.Get("/sops/{id}", h.get)
	r.Post("/sops/{id}/execute", h.start)
	r.Get("/sops/{id}/execution", h.active)

	r.Get("/sop-executions", h.executions)
	r.Get("/sop-executions/{id}/steps", h.steps)
	r.Post("/sop-executions/{id}/steps", h.completeStep)
	r.Post("/sop-executions/{id}/pause", h.pause)
	r.Post("/sop-executions/{id}/resume", h.resume)
	r.Patch("/sop-executions/{id}/complete", h.complete)
	r.Delete("/sop-executions/{id}", h.reset)
}

func (h SOPHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	sops, err := h.Service.ListSOPs(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(sops))
	for _, s := range sops {
		resp = append(resp, sopPayload(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h SOPHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Steps       []struct {
			Title            string `json:"title"`
			Description      string `json:"description"`
			Required         *bool  `json:"required"`
			EstimatedMinutes int    `json:"estimatedMinutes"`
		} `json:"steps"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	in := service.SOPInput{Title: req.Title, Description: req.Description, Category: req.Category}
	for _, st := range req.Steps {
		in.Steps = append(in.Steps, service.StepInput{
			Title:            st.Title,
			Description:      st.Description,
			Required:         st.Required == nil || *st.Required,
			EstimatedMinutes: st.EstimatedMinutes,
		})
	}
	sop, err := h.Service.CreateSOP(r.Context(), user.ID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sopPayload(*sop))
}

func (h SOPHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sop, err := h.Service.GetSOP(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sopPayload(*sop))
}

func (h SOPHandler) start(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusCreated, h.Service.Start)
}

func (h SOPHandler) active(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.Service.ActiveExecution)
}

// run resolves the path id and renders the resulting execution.
func (h SOPHandler) run(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, userID, id int64) (*domain.SOPExecution, error)) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := fn(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, executionPayload(*e, h.Service.Elapsed(*e)))
}

func (h SOPHandler) executions(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.Service.ListExecutions(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(list))
	for _, e := range list {
		resp = append(resp, executionPayload(e, h.Service.Elapsed(e)))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h SOPHandler) steps(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	steps, err := h.Service.Steps(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(steps))
	for _, c := range steps {
		media := c.MediaURLs
		if media == nil {
			media = []string{}
		}
		resp = append(resp, map[string]any{
			"stepId":      c.StepID,
			"notes":       c.Notes,
			"mediaUrls":   media,
			"completedAt": c.CompletedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h SOPHandler) completeStep(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		StepID    int64    `json:"stepId"`
		Notes     string   `json:"notes"`
		MediaURLs []string `json:"mediaUrls"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.Service.CompleteStep(r.Context(), service.StepCompletionInput{
		UserID:      user.ID,
		ExecutionID: id,
		StepID:      req.StepID,
		Notes:       req.Notes,
		MediaURLs:   req.MediaURLs,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, executionPayload(*e, h.Service.Elapsed(*e)))
}

func (h SOPHandler) pause(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.Service.Pause)
}

func (h SOPHandler) resume(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.Service.Resume)
}

func (h SOPHandler) complete(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, h.Service.Complete)
}

func (h SOPHandler) reset(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Reset(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
