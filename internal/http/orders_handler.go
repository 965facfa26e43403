package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req domain.PlaceOrder) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, callerID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, callerID string, status domain.OrderStatus) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	carts   CartService
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(orders OrderService, carts CartService, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type OrderItemDTO struct {
	ProductID string          `json:"id" validate:"required"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
}

type RecipientDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address"`
}

// CreateOrderRequestDTO is the checkout form. Items, when present, replace
// the session cart. Total, Discount and DeliveryPrice are what the client
// showed the shopper; they are compared with the server's figures but never
// trusted.
type CreateOrderRequestDTO struct {
	Items          []OrderItemDTO `json:"items" validate:"omitempty,dive"`
	Total          *int64         `json:"total"`
	Discount       *int64         `json:"discount"`
	DeliveryPrice  *int64         `json:"deliveryPrice"`
	DeliveryMethod string         `json:"deliveryMethod" validate:"required"`
	PaymentMethod  string         `json:"paymentMethod" validate:"required"`
	Recipient      RecipientDTO   `json:"recipient"`
	Comment        string         `json:"comment" validate:"max=1000"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	deliveryMethod, err := domain.ParseDeliveryMethod(req.DeliveryMethod)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error(), "deliveryMethod")
		return
	}
	paymentMethod, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error(), "paymentMethod")
		return
	}

	sessionID := cartSessionFromContext(r.Context())
	lines, err := h.orderLines(ctx, req, sessionID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, domain.PlaceOrder{
		UserID: userIDFromContext(r.Context()),
		Lines:  lines,
		Recipient: domain.Recipient{
			FirstName: req.Recipient.FirstName,
			LastName:  req.Recipient.LastName,
			Phone:     req.Recipient.Phone,
			Email:     req.Recipient.Email,
			Address:   req.Recipient.Address,
		},
		DeliveryMethod: deliveryMethod,
		PaymentMethod:  paymentMethod,
		Comment:        req.Comment,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	log := logger.WithContext(r.Context(), h.log).With(zap.String("order_id", order.ID.String()))
	if clientTotalsDiffer(req, order) {
		log.Warn("client totals differ from server totals",
			zap.Int64p("client_total", req.Total),
			zap.Int64p("client_discount", req.Discount),
			zap.Int64p("client_delivery_price", req.DeliveryPrice),
			zap.Int64("total", order.Total),
			zap.Int64("discount", order.Discount),
			zap.Int64("delivery_price", order.DeliveryFee))
	}

	if sessionID != "" {
		if _, err := h.carts.ClearCart(ctx, sessionID); err != nil {
			log.Warn("failed to clear cart after order", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusCreated, order)
}

// orderLines returns the lines to freeze: the request items if the client
// sent any, the session cart otherwise.
func (h *OrdersHandler) orderLines(ctx context.Context, req CreateOrderRequestDTO, sessionID string) ([]domain.CartLine, error) {
	if req.Items != nil {
		lines := make([]domain.CartLine, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, domain.CartLine{
				ProductID: it.ProductID,
				Name:      it.Name,
				UnitPrice: it.Price,
				Image:     it.Image,
				Quantity:  it.Quantity,
				Size:      it.Size,
				Color:     it.Color,
			})
		}
		return lines, nil
	}
	if sessionID == "" {
		return nil, nil
	}
	cart, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return cart.Lines(), nil
}

func clientTotalsDiffer(req CreateOrderRequestDTO, order *domain.Order) bool {
	differs := func(client *int64, server int64) bool {
		return client != nil && *client != server
	}
	return differs(req.Total, order.Total) ||
		differs(req.Discount, order.Discount) ||
		differs(req.DeliveryPrice, order.DeliveryFee)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, userIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, userIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error(), "status")
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, orderID, userIDFromContext(r.Context()), status)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// parseOrderID treats a malformed id as a missing order.
func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "order not found", "")
		return uuid.Nil, false
	}
	return id, true
}
