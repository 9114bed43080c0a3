package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"github.com/domremont/backend/internal/review"
)

type CreateReviewRequest struct {
	OrderID string  `json:"orderId" validate:"required,uuid"`
	Rating  int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment *string `json:"comment,omitempty"`
}

type ReviewHandler struct {
	svc      review.Service
	validate *validator.Validate
}

func NewReviewHandler(svc review.Service) *ReviewHandler {
	return &ReviewHandler{svc: svc, validate: validator.New()}
}

func (h *ReviewHandler) RegisterRoutes(router chi.Router) {
	router.Post("/reviews", h.handleCreateReview)
	router.Get("/services/{id}/reviews", h.handleGetServiceReviews)
	router.Get("/orders/{id}/review", h.handleGetOrderReview)
}

func (h *ReviewHandler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateReviewRequest
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

	orderID, err := uuid.FromString(req.OrderID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid orderId")
		return
	}

	rv, err := h.svc.Create(r.Context(), userID, review.CreateReviewInput{
		OrderID: orderID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rv)
}

func (h *ReviewHandler) handleGetServiceReviews(w http.ResponseWriter, r *http.Request) {
	serviceID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	page, err := h.svc.ListForService(r.Context(), serviceID, parsePagination(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *ReviewHandler) handleGetOrderReview(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	rv, err := h.svc.GetForOrder(r.Context(), orderID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rv)
}
