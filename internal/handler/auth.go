package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/domremont/backend/internal/auth"
	"github.com/domremont/backend/internal/user"
)

type SendCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=10"`
}

type VerifyCodeRequest struct {
	Phone string `json:"phone" validate:"required,min=10"`
	Code  string `json:"code" validate:"required,len=4"`
}

type VerifyCodeResponse struct {
	AccessToken string     `json:"accessToken"`
	User        *user.User `json:"user"`
}

type AuthHandler struct {
	svc      *auth.Service
	validate *validator.Validate
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc, validate: validator.New()}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/send-code", h.handleSendCode)
	router.Post("/auth/verify-code", h.handleVerifyCode)
}

func (h *AuthHandler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	if err := h.svc.SendCode(r.Context(), req.Phone); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Code sent successfully"})
}

func (h *AuthHandler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	token, u, err := h.svc.VerifyCode(r.Context(), req.Phone, req.Code)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, VerifyCodeResponse{AccessToken: token, User: u})
}
