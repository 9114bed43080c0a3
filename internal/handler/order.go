package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/auth"
	"github.com/domremont/backend/internal/order"
)

type OrderItemRequest struct {
	ServiceID string `json:"serviceId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1"`
}

type CreateOrderRequest struct {
	Recipient      string             `json:"recipient" validate:"required"`
	ClientName     string             `json:"clientName" validate:"required"`
	ClientPhone    string             `json:"clientPhone" validate:"required"`
	City           string             `json:"city" validate:"required"`
	Address        string             `json:"address" validate:"required"`
	Apartment      *string            `json:"apartment,omitempty"`
	IsPrivateHouse bool               `json:"isPrivateHouse"`
	Urgency        string             `json:"urgency" validate:"omitempty,oneof=URGENT SCHEDULED"`
	ScheduledDate  *string            `json:"scheduledDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ScheduledTime  *string            `json:"scheduledTime,omitempty"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateUrgentOrderRequest struct {
	Phone       string  `json:"phone" validate:"required"`
	Description *string `json:"description,omitempty"`
	City        *string `json:"city,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=PENDING CONFIRMED IN_PROGRESS COMPLETED CANCELLED"`
	Reason *string `json:"reason,omitempty"`
}

type UpdateOrderStepRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING IN_PROGRESS COMPLETED"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// OrderHandler обрабатывает HTTP-запросы, связанные с заказами.
type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Post("/orders/urgent", h.handleCreateUrgentOrder)
	router.Get("/orders", h.handleGetUserOrders)
	router.Get("/orders/available", h.handleGetAvailableOrders)
	router.Get("/orders/master", h.handleGetMasterOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/orders/{id}/master", h.handleGetOrderForMaster)
	router.Patch("/orders/{id}/assign", h.handleAssignOrder)
	router.Patch("/orders/{id}/status", h.handleUpdateOrderStatus)
	router.Patch("/orders/{id}/steps/{stepId}", h.handleUpdateOrderStep)
	router.Post("/orders/{id}/cancel", h.handleCancelOrder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	input := order.CreateOrderInput{
		Recipient:      req.Recipient,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		City:           req.City,
		Address:        req.Address,
		Apartment:      req.Apartment,
		IsPrivateHouse: req.IsPrivateHouse,
		Urgency:        order.Urgency(req.Urgency),
		ScheduledTime:  req.ScheduledTime,
	}

	if req.ScheduledDate != nil {
		date, err := time.Parse("2006-01-02", *req.ScheduledDate)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid scheduledDate")
			return
		}
		input.ScheduledDate = &date
	}

	for _, item := range req.Items {
		serviceID, err := uuid.FromString(item.ServiceID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid serviceId in items")
			return
		}
		input.Items = append(input.Items, order.CreateOrderItemInput{
			ServiceID: serviceID,
			Quantity:  item.Quantity,
		})
	}

	// Гостевой заказ допустим: clientID остается nil без токена.
	var clientID *uuid.UUID
	if id, ok := auth.UserIDFromContext(r.Context()); ok {
		clientID = &id
	}

	created, err := h.svc.Create(r.Context(), input, clientID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleCreateUrgentOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateUrgentOrderRequest

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

	created, err := h.svc.CreateUrgent(r.Context(), order.CreateUrgentOrderInput{
		Phone:       req.Phone,
		Description: req.Description,
		City:        req.City,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := h.svc.ListForClient(r.Context(), userID, parsePagination(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleGetAvailableOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := h.svc.ListAvailable(r.Context(), userID, parsePagination(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleGetMasterOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := h.svc.ListForMaster(r.Context(), userID, parsePagination(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.svc.GetForClient(r.Context(), orderID, userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleGetOrderForMaster(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.svc.GetForMaster(r.Context(), orderID, userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleAssignOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.svc.Assign(r.Context(), orderID, userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
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

	o, err := h.svc.UpdateStatus(r.Context(), orderID, userID, order.Status(req.Status), req.Reason)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateOrderStep(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	stepID, ok := parseIDParam(w, r, "stepId")
	if !ok {
		return
	}

	var req UpdateOrderStepRequest
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

	step, err := h.svc.UpdateStep(r.Context(), orderID, stepID, userID, order.StepStatus(req.Status))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, step)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req CancelOrderRequest
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

	o, err := h.svc.CancelByClient(r.Context(), orderID, userID, req.Reason)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str("param", name).Str("value", raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}
