package handler

import (
	"errors"
	"io"
	"net/http"

	"staffbook-backend/internal/service"
	"staffbook-backend/internal/storage"
	"github.com/go-chi/chi/v5"
)

// UploadHandler hands out upload slots and serves stored media.
type UploadHandler struct {
	Service *service.MediaService
}

func (h UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/uploads", h.reserve)
	r.Put("/objects/uploads/{id}", h.put)
	r.Get("/objects/uploads/{id}", h.get)
}

func (h UploadHandler) reserve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	up, err := h.Service.Reserve(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

func (h UploadHandler) put(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	obj, err := h.Service.Store(r.Context(), user.ID, chi.URLParam(r, "id"), r.Body)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"objectPath": storage.ObjectPath(obj.ID),
		"size":       obj.Size,
	})
}

func (h UploadHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	f, err := h.Service.Open(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	w.Header().Set("Content-Type", http.DetectContentType(head[:n]))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeAppError(w, r, err)
		return
	}
	_, _ = io.Copy(w, f)
}

func (h UploadHandler) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidObject):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		writeAppError(w, r, err)
	}
}
