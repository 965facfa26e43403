package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartStore persists cart snapshots per shopper session.
type CartStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Cart, error)
	// Update applies mutate to the current cart and writes the result back
	// atomically with respect to other updates of the same session.
	Update(ctx context.Context, sessionID string, mutate func(*domain.Cart)) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

var ErrUpdateConflict = errors.New("cart update conflict")
