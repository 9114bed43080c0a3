package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/domremont/backend/internal/promo"
)

type ActivatePromoRequest struct {
	Code string `json:"code" validate:"required"`
}

type PromoHandler struct {
	svc      promo.Service
	validate *validator.Validate
}

func NewPromoHandler(svc promo.Service) *PromoHandler {
	return &PromoHandler{svc: svc, validate: validator.New()}
}

func (h *PromoHandler) RegisterRoutes(router chi.Router) {
	router.Get("/promo-codes", h.handleListPromoCodes)
	router.Get("/promo-codes/my", h.handleListUserPromoCodes)
	router.Post("/promo-codes/activate", h.handleActivatePromoCode)
}

func (h *PromoHandler) handleListPromoCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.svc.ListActive(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, codes)
}

func (h *PromoHandler) handleListUserPromoCodes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	activations, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, activations)
}

func (h *PromoHandler) handleActivatePromoCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ActivatePromoRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	result, err := h.svc.Activate(r.Context(), userID, req.Code)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}
