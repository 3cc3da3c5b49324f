package handler

import (
	"net/http"
	"strings"
	"time"

	"staffbook-backend/internal/domain"
	"staffbook-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Service *service.AuthService
}

func (h AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/companies", h.createCompany)
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Post("/auth/refresh", h.refresh)
}

func (h AuthHandler) createCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyName string `json:"companyName"`
		OwnerName   string `json:"ownerName"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		Phone       string `json:"phone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Service.CreateCompany(r.Context(), service.CreateCompanyInput{
		CompanyName: req.CompanyName,
		OwnerName:   req.OwnerName,
		Email:       strings.ToLower(req.Email),
		Password:    req.Password,
		Phone:       req.Phone,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeAuthResponse(w, http.StatusCreated, res)
}

func (h AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID int64  `json:"companyId"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Role      string `json:"role"`
		Phone     string `json:"phone"`
		Position  string `json:"position"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Service.Register(r.Context(), service.RegisterInput{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Email:     strings.ToLower(req.Email),
		Password:  req.Password,
		Role:      domain.UserRole(strings.ToLower(req.Role)),
		Phone:     req.Phone,
		Position:  req.Position,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeAuthResponse(w, http.StatusCreated, res)
}

func (h AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Service.Login(r.Context(), service.LoginInput{
		Email:    strings.ToLower(req.Email),
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeAuthResponse(w, http.StatusOK, res)
}

func (h AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Service.Refresh(r.Context(), service.RefreshInput{RefreshToken: req.RefreshToken})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeAuthResponse(w, http.StatusOK, res)
}

func writeAuthResponse(w http.ResponseWriter, status int, res *service.AuthResult) {
	writeJSON(w, status, map[string]any{
		"token":        res.AccessToken,
		"refreshToken": res.RefreshToken,
		"expiresAt":    res.ExpiresAt.UTC().Format(time.RFC3339),
		"user":         userPayload(res.User),
	})
}
