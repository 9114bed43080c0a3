package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/domremont/backend/internal/user"
)

type CityHandler struct {
	repo user.Repository
}

func NewCityHandler(repo user.Repository) *CityHandler {
	return &CityHandler{repo: repo}
}

func (h *CityHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cities", h.handleListCities)
}

func (h *CityHandler) handleListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.repo.ListActiveCities(r.Context())
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cities)
}
