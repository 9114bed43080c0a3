package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/auth"
	"github.com/domremont/backend/internal/order"
	"github.com/domremont/backend/internal/promo"
	"github.com/domremont/backend/internal/referral"
	"github.com/domremont/backend/internal/review"
	"github.com/domremont/backend/internal/user"
)

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return details
}

func respondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrStepNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, user.ErrCityNotFound),
		errors.Is(err, referral.ErrCodeNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, promo.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrAccessDenied),
		errors.Is(err, order.ErrNotYourOrder),
		errors.Is(err, order.ErrNotMaster):
		return http.StatusForbidden
	case errors.Is(err, order.ErrClaimConflict),
		errors.Is(err, review.ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, order.ErrAlreadyAssigned),
		errors.Is(err, order.ErrMasterInactive),
		errors.Is(err, order.ErrCityMismatch),
		errors.Is(err, order.ErrNotClaimable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrMasterAssigned),
		errors.Is(err, order.ErrNoItems),
		errors.Is(err, referral.ErrOwnCode),
		errors.Is(err, referral.ErrAlreadyActivated),
		errors.Is(err, review.ErrNotYourOrder),
		errors.Is(err, review.ErrOrderNotCompleted),
		errors.Is(err, review.ErrEmptyOrder),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, promo.ErrInactive),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrLimitReached),
		errors.Is(err, promo.ErrAlreadyUsed):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCode):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError показывает текст доменной ошибки клиенту:
// тексты ошибок уровня сервиса точные и безопасные для UI.
func respondWithDomainError(w http.ResponseWriter, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("internal error")
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func parsePagination(r *http.Request) order.Pagination {
	p := order.Pagination{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		p.Limit = v
	}
	return p.Normalize()
}
