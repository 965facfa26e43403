package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxCreateAttempts = 3
	createRetryDelay  = 100 * time.Millisecond
)

type OrderService struct {
	repo       repository.OrderRepository
	log        *zap.Logger
	now        func() time.Time
	newID      func() uuid.UUID
	retryDelay time.Duration
}

func NewOrderService(repo repository.OrderRepository, log *zap.Logger) *OrderService {
	return &OrderService{
		repo:       repo,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.New,
		retryDelay: createRetryDelay,
	}
}

// CreateOrder validates the request, freezes the cart lines and totals and
// stores the order. Storage failures are retried with the same order id.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.PlaceOrder) (*domain.Order, error) {
	if req.UserID == "" {
		return nil, unauthenticated()
	}
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	order := domain.NewOrder(s.newID(), req, s.now())
	log := s.log.With(zap.String("order_id", order.ID.String()), zap.String("user_id", order.UserID))

	var err error
retry:
	for attempt := 1; ; attempt++ {
		err = s.repo.CreateOrder(ctx, order)
		if err == nil {
			log.Info("order created",
				zap.Int64("total", order.Total),
				zap.Int("items", len(order.Items)),
				zap.String("delivery_method", order.DeliveryMethod.String()),
			)
			return order, nil
		}

		// A previous attempt may have committed before its reply was lost.
		if attempt > 1 && errors.Is(err, repository.ErrDuplicateOrder) {
			if existing, getErr := s.repo.GetOrderByID(ctx, order.ID); getErr == nil {
				return existing, nil
			}
		}
		if !repository.IsTransient(err) || attempt == maxCreateAttempts {
			break
		}

		log.Warn("create order failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt) * s.retryDelay):
		}
	}

	log.Error("create order failed", zap.Error(err))
	return nil, persistenceError("create order", err)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, callerID string) (*domain.Order, error) {
	if callerID == "" {
		return nil, unauthenticated()
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != callerID {
		return nil, forbidden("order belongs to another user")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, unauthenticated()
	}
	orders, err := s.repo.ListOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("list orders failed", zap.String("user_id", userID), zap.Error(err))
		return nil, persistenceError("list orders", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order owned by callerID to status. The write is
// conditional on the status read here, so a concurrent change makes it fail
// as an illegal transition.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, callerID string, status domain.OrderStatus) (*domain.Order, error) {
	if callerID == "" {
		return nil, unauthenticated()
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != callerID {
		s.log.Warn("status update by non-owner rejected",
			zap.String("order_id", orderID.String()),
			zap.String("caller_id", callerID),
		)
		return nil, forbidden("order belongs to another user")
	}
	if !status.Valid() {
		return nil, validationError("status", "unknown order status")
	}
	if !domain.CanTransitionTo(order.Status, status) {
		return nil, illegalTransition(order.Status, status)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, order.Status, status, s.now())
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return nil, &Error{Kind: KindIllegalTransition, Message: "order status changed concurrently", Err: err}
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, notFound("order not found", err)
	case err != nil:
		s.log.Error("update order status failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, persistenceError("update order status", err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", order.Status.String()),
		zap.String("to", status.String()),
	)
	return updated, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, notFound("order not found", err)
	}
	if err != nil {
		s.log.Error("get order failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, persistenceError("get order", err)
	}
	return order, nil
}

func validatePlaceOrder(req domain.PlaceOrder) error {
	if len(req.Lines) == 0 {
		return &Error{Kind: KindValidation, Field: "items", Message: "cart is empty", Err: ErrEmptyCart}
	}
	if len(req.Lines) > domain.MaxCartLines {
		return validationError("items", fmt.Sprintf("at most %d lines per order", domain.MaxCartLines))
	}
	for _, line := range req.Lines {
		if !line.Valid() {
			return validationError("items", "contains an invalid line")
		}
	}
	if !req.DeliveryMethod.Valid() {
		return validationError("deliveryMethod", "unknown delivery method")
	}
	if !req.PaymentMethod.Valid() {
		return validationError("paymentMethod", "unknown payment method")
	}
	if field := req.Recipient.MissingField(req.DeliveryMethod); field != "" {
		return validationError("recipient."+field, "is required")
	}
	if !domain.PaymentAvailable(req.PaymentMethod, domain.Subtotal(req.Lines), req.DeliveryMethod) {
		return validationError("paymentMethod", "not available for this order")
	}
	return nil
}
