package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

// CanTransitionTo reports whether from -> to is an edge of the order
// lifecycle. Writing the same status again is not a transition.
func CanTransitionTo(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Recipient struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address,omitempty"`
}

// MissingField returns the JSON name of the first required field that is
// blank, or "" when the recipient is complete for the delivery method.
func (r Recipient) MissingField(method DeliveryMethod) string {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", r.FirstName},
		{"lastName", r.LastName},
		{"phone", r.Phone},
		{"email", r.Email},
	}
	if method == DeliveryCourier {
		required = append(required, struct {
			name  string
			value string
		}{"address", r.Address})
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}

// OrderItem is a frozen copy of a cart line taken when the order was placed.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

type Order struct {
	ID             uuid.UUID      `json:"id"`
	UserID         string         `json:"userId"`
	Items          []OrderItem    `json:"items"`
	Subtotal       int64          `json:"subtotal"`
	Discount       int64          `json:"discount"`
	DeliveryFee    int64          `json:"deliveryPrice"`
	Total          int64          `json:"total"`
	DeliveryMethod DeliveryMethod `json:"deliveryMethod"`
	PaymentMethod  PaymentMethod  `json:"paymentMethod"`
	Status         OrderStatus    `json:"status"`
	Recipient      Recipient      `json:"recipient"`
	Comment        string         `json:"comment,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// PlaceOrder describes a checkout request after the caller has been
// authenticated.
type PlaceOrder struct {
	UserID         string
	Lines          []CartLine
	Recipient      Recipient
	DeliveryMethod DeliveryMethod
	PaymentMethod  PaymentMethod
	Comment        string
}

// NewOrder freezes the lines and the totals computed from them into a new
// order in the processing state.
func NewOrder(id uuid.UUID, req PlaceOrder, now time.Time) *Order {
	items := make([]OrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.UnitPrice,
			Image:     line.Image,
			Quantity:  line.Quantity,
			Size:      line.Size,
			Color:     line.Color,
		})
	}
	totals := ComputeCheckoutTotals(Subtotal(req.Lines), req.DeliveryMethod)
	return &Order{
		ID:             id,
		UserID:         req.UserID,
		Items:          items,
		Subtotal:       totals.Subtotal,
		Discount:       totals.Discount,
		DeliveryFee:    totals.DeliveryFee,
		Total:          totals.Total,
		DeliveryMethod: req.DeliveryMethod,
		PaymentMethod:  req.PaymentMethod,
		Status:         OrderStatusProcessing,
		Recipient:      req.Recipient,
		Comment:        req.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
