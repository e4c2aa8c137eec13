package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCompleted     = "ORDER_COMPLETED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeMessagePosted      = "MESSAGE_POSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID          string          `json:"order_id"`
	CustomerID       string          `json:"customer_id,omitempty"`
	Total            decimal.Decimal `json:"total"`
	CashbackDiscount decimal.Decimal `json:"cashback_discount"`
	CashbackEarned   decimal.Decimal `json:"cashback_earned"`
	Fulfillment      string          `json:"fulfillment"`
	Manual           bool            `json:"manual"`
}

// OrderStatusChangedEvent published on pipeline advances
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id,omitempty"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// OrderCompletedEvent published when delivery is verified
type OrderCompletedEvent struct {
	BaseEvent
	OrderID          string          `json:"order_id"`
	CustomerID       string          `json:"customer_id,omitempty"`
	CashbackCredited decimal.Decimal `json:"cashback_credited"`
}

// OrderCancelledEvent published on cancellation
type OrderCancelledEvent struct {
	BaseEvent
	OrderID          string          `json:"order_id"`
	CustomerID       string          `json:"customer_id,omitempty"`
	From             string          `json:"from"`
	CashbackRestored decimal.Decimal `json:"cashback_restored"`
}

// MessagePostedEvent published when a chat message is appended
type MessagePostedEvent struct {
	BaseEvent
	MessageID  string `json:"message_id"`
	CustomerID string `json:"customer_id"`
	IsAdmin    bool   `json:"is_admin"`
}
