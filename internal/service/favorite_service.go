package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
)

type FavoriteService struct {
	repo repository.FavoriteRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewFavoriteService(repo repository.FavoriteRepository, log *zap.Logger) *FavoriteService {
	return &FavoriteService{
		repo: repo,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Toggle removes the favorite if present and adds it otherwise. It reports
// whether the product is favorited afterwards.
func (s *FavoriteService) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	if err := checkFavoriteArgs(userID, productID); err != nil {
		return false, err
	}

	removed, err := s.repo.RemoveFavorite(ctx, userID, productID)
	if err != nil {
		return false, s.failed("toggle favorite", userID, err)
	}
	if removed {
		return false, nil
	}

	err = s.repo.AddFavorite(ctx, &domain.Favorite{UserID: userID, ProductID: productID, CreatedAt: s.now()})
	if errors.Is(err, repository.ErrAlreadyFavorited) {
		// lost a race with a concurrent toggle that inserted the same pair
		return true, nil
	}
	if err != nil {
		return false, s.failed("toggle favorite", userID, err)
	}
	return true, nil
}

func (s *FavoriteService) Add(ctx context.Context, userID, productID string) error {
	if err := checkFavoriteArgs(userID, productID); err != nil {
		return err
	}

	err := s.repo.AddFavorite(ctx, &domain.Favorite{UserID: userID, ProductID: productID, CreatedAt: s.now()})
	if errors.Is(err, repository.ErrAlreadyFavorited) {
		return alreadyExists("product already in favorites", err)
	}
	if err != nil {
		return s.failed("add favorite", userID, err)
	}
	return nil
}

func (s *FavoriteService) Remove(ctx context.Context, userID, productID string) error {
	if err := checkFavoriteArgs(userID, productID); err != nil {
		return err
	}
	if _, err := s.repo.RemoveFavorite(ctx, userID, productID); err != nil {
		return s.failed("remove favorite", userID, err)
	}
	return nil
}

func (s *FavoriteService) IsFavorite(ctx context.Context, userID, productID string) (bool, error) {
	if err := checkFavoriteArgs(userID, productID); err != nil {
		return false, err
	}
	ok, err := s.repo.IsFavorite(ctx, userID, productID)
	if err != nil {
		return false, s.failed("check favorite", userID, err)
	}
	return ok, nil
}

// List returns the favorited product ids, oldest first.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, unauthenticated()
	}
	favs, err := s.repo.ListFavorites(ctx, userID)
	if err != nil {
		return nil, s.failed("list favorites", userID, err)
	}
	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.ProductID)
	}
	return ids, nil
}

func (s *FavoriteService) failed(op, userID string, err error) error {
	s.log.Error(op+" failed", zap.String("user_id", userID), zap.Error(err))
	return persistenceError(op, err)
}

func checkFavoriteArgs(userID, productID string) error {
	if userID == "" {
		return unauthenticated()
	}
	if strings.TrimSpace(productID) == "" {
		return validationError("productId", "is required")
	}
	return nil
}
