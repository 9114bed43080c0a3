package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/domremont/backend/internal/referral"
)

type ActivateReferralRequest struct {
	Code string `json:"code" validate:"required,len=8"`
}

type ReferralHandler struct {
	svc      referral.Service
	validate *validator.Validate
}

func NewReferralHandler(svc referral.Service) *ReferralHandler {
	return &ReferralHandler{svc: svc, validate: validator.New()}
}

func (h *ReferralHandler) RegisterRoutes(router chi.Router) {
	router.Post("/referrals/activate", h.handleActivate)
	router.Get("/referrals/stats", h.handleStats)
}

func (h *ReferralHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ActivateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	ref, err := h.svc.Activate(r.Context(), userID, req.Code)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"referral": ref,
	})
}

func (h *ReferralHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
