package service

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// sharedLoadTimeout bounds a collapsed load, which outlives any single caller.
const sharedLoadTimeout = 5 * time.Second

type CartService struct {
	store cache.CartStore
	log   *zap.Logger
	sfg   singleflight.Group // collapses concurrent loads of one session
}

func NewCartService(store cache.CartStore, log *zap.Logger) *CartService {
	return &CartService{
		store: store,
		log:   log,
	}
}

// CheckoutQuote is what the checkout page shows before an order is placed.
type CheckoutQuote struct {
	domain.CheckoutTotals
	ItemCount      int                    `json:"itemCount"`
	DeliveryMethod domain.DeliveryMethod  `json:"deliveryMethod,omitempty"`
	PaymentMethods []domain.PaymentMethod `json:"paymentMethods"`
}

func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, validationError("cart_session", "is required")
	}

	// The load is shared, so one caller going away must not fail the others.
	ch := s.sfg.DoChan(sessionID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return s.store.Load(loadCtx, sessionID)
	})

	select {
	case <-ctx.Done():
		return nil, persistenceError("load cart", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			s.log.Error("cart load failed", zap.String("session_id", sessionID), zap.Error(res.Err))
			return nil, persistenceError("load cart", res.Err)
		}
		return res.Val.(*domain.Cart), nil
	}
}

func (s *CartService) AddItem(ctx context.Context, sessionID string, in domain.CartLineInput) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, "add item", func(c *domain.Cart) { c.AddItem(in) })
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, "update quantity", func(c *domain.Cart) { c.UpdateQuantity(productID, quantity) })
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, "remove item", func(c *domain.Cart) { c.RemoveItem(productID) })
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, validationError("cart_session", "is required")
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		s.log.Error("cart clear failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, persistenceError("clear cart", err)
	}
	return domain.NewCart(), nil
}

// Quote prices the session cart for the given delivery method. An empty
// method means the shopper has not picked one yet.
func (s *CartService) Quote(ctx context.Context, sessionID string, method domain.DeliveryMethod) (*CheckoutQuote, error) {
	if method != "" && !method.Valid() {
		return nil, validationError("delivery_method", "unknown delivery method")
	}
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &CheckoutQuote{
		CheckoutTotals: domain.ComputeCheckoutTotals(cart.Subtotal(), method),
		ItemCount:      cart.ItemCount(),
		DeliveryMethod: method,
		PaymentMethods: domain.AvailablePaymentMethods(cart.Subtotal(), method),
	}, nil
}

func (s *CartService) mutate(ctx context.Context, sessionID, op string, fn func(*domain.Cart)) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, validationError("cart_session", "is required")
	}
	cart, err := s.store.Update(ctx, sessionID, fn)
	if err != nil {
		s.log.Error("cart "+op+" failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, persistenceError(op, err)
	}
	return cart, nil
}
