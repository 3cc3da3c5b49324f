package handler

import (
	"net/http"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	Service *service.TaskService
}

func (h TaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tasks", h.list)
	r.Post("/tasks", h.create)
	r.Patch("/tasks/{id}", h.updateStatus)
}

func (h TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tasks, err := h.Service.ListTasks(r.Context(), user.ID, domain.TaskStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskPayload(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		AssignedTo  int64  `json:"assignedTo"`
		Priority    string `json:"priority"`
		DueDate     string `json:"dueDate"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	in := service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Priority:    domain.TaskPriority(req.Priority),
	}
	if req.DueDate != "" {
		due, err := parseTime(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid dueDate")
			return
		}
		in.DueDate = due
	}
	task, err := h.Service.CreateTask(r.Context(), user.ID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskPayload(*task))
}

func (h TaskHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
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
	task, err := h.Service.UpdateStatus(r.Context(), user.ID, id, domain.TaskStatus(req.Status))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskPayload(*task))
}
