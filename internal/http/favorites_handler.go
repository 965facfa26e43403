package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type FavoriteService interface {
	Toggle(ctx context.Context, userID, productID string) (bool, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	IsFavorite(ctx context.Context, userID, productID string) (bool, error)
	List(ctx context.Context, userID string) ([]string, error)
}

type FavoritesHandler struct {
	favorites FavoriteService
	timeout   time.Duration
	log       *zap.Logger
}

func NewFavoritesHandler(favorites FavoriteService, timeout time.Duration, log *zap.Logger) *FavoritesHandler {
	return &FavoritesHandler{
		favorites: favorites,
		timeout:   timeout,
		log:       log,
	}
}

type AddFavoriteRequestDTO struct {
	ProductID string `json:"productId" validate:"required"`
}

type FavoriteStatusDTO struct {
	ProductID string `json:"productId"`
	Favorited bool   `json:"favorited"`
}

type FavoritesListDTO struct {
	ProductIDs []string `json:"productIds"`
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ids, err := h.favorites.List(ctx, userIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, FavoritesListDTO{ProductIDs: ids})
}

func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddFavoriteRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	if err := h.favorites.Add(ctx, userIDFromContext(r.Context()), req.ProductID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, FavoriteStatusDTO{ProductID: req.ProductID, Favorited: true})
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if err := h.favorites.Remove(ctx, userIDFromContext(r.Context()), productID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	favorited, err := h.favorites.Toggle(ctx, userIDFromContext(r.Context()), productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, FavoriteStatusDTO{ProductID: productID, Favorited: favorited})
}

func (h *FavoritesHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	favorited, err := h.favorites.IsFavorite(ctx, userIDFromContext(r.Context()), productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, FavoriteStatusDTO{ProductID: productID, Favorited: favorited})
}
