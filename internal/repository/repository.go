package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrder   = errors.New("order with this id already exists")
	ErrStatusConflict   = errors.New("order status changed concurrently")
	ErrAlreadyFavorited = errors.New("product already in favorites")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	// CreateOrder stores the order, its items and an OrderCreated outbox
	// event in one transaction.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ListOrdersByUserID returns orders oldest first with items loaded.
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	// UpdateOrderStatus moves the order from -> to only if its status is
	// still from, and records an OrderStatusChanged outbox event.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, at time.Time) (*domain.Order, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type FavoriteRepository interface {
	AddFavorite(ctx context.Context, fav *domain.Favorite) error
	// RemoveFavorite reports whether a favorite was deleted.
	RemoveFavorite(ctx context.Context, userID, productID string) (bool, error)
	IsFavorite(ctx context.Context, userID, productID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]*domain.Favorite, error)
}
