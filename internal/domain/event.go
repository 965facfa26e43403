package domain

import (
	"encoding/json"
	"time"
)

type OrderEventType string

const (
	OrderCreated       OrderEventType = "OrderCreated"
	OrderStatusChanged OrderEventType = "OrderStatusChanged"
)

// OrderEvent is the payload stored in the outbox and published to Kafka.
type OrderEvent struct {
	EventType      OrderEventType `json:"event_type"`
	OrderID        string         `json:"order_id"`
	UserID         string         `json:"user_id"`
	Status         OrderStatus    `json:"status"`
	PreviousStatus OrderStatus    `json:"previous_status,omitempty"`
	Total          int64          `json:"total"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

func NewOrderCreatedEvent(o *Order) OrderEvent {
	return OrderEvent{
		EventType:  OrderCreated,
		OrderID:    o.ID.String(),
		UserID:     o.UserID,
		Status:     o.Status,
		Total:      o.Total,
		OccurredAt: o.CreatedAt,
	}
}

func NewOrderStatusChangedEvent(o *Order, previous OrderStatus) OrderEvent {
	return OrderEvent{
		EventType:      OrderStatusChanged,
		OrderID:        o.ID.String(),
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		Total:          o.Total,
		OccurredAt:     o.UpdatedAt,
	}
}

// OutboxEvent is a pending order event row.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   OrderEventType
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
