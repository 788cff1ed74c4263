package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeOrderDeleted   = "ORDER_DELETED"
	EventTypeOrderLate      = "ORDER_LATE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published whenever an order changes state
type OrderEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Items      []OrderItemData `json:"items,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// IsOrderEvent reports whether eventType belongs to the order lifecycle.
func IsOrderEvent(eventType string) bool {
	switch eventType {
	case EventTypeOrderCreated, EventTypeOrderPaid, EventTypeOrderCancelled,
		EventTypeOrderDeleted, EventTypeOrderLate:
		return true
	}
	return false
}
