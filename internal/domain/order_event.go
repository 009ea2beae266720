package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

type OrderCreatedEvent struct {
	OrderID     uint64          `json:"orderId"`
	UserID      uint64          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []StockMovement `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type OrderStatusChangedEvent struct {
	OrderID   uint64      `json:"orderId"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changedAt"`
}

type OrderCancelledEvent struct {
	OrderID     uint64          `json:"orderId"`
	UserID      uint64          `json:"userId"`
	Restored    []StockMovement `json:"restored"`
	CancelledAt time.Time       `json:"cancelledAt"`
}

// StockMovement is a signed change applied to one product's stock.
type StockMovement struct {
	ProductID uint64 `json:"productId"`
	Delta     int64  `json:"delta"`
}

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	moves := make([]StockMovement, len(o.Items))
	for i, it := range o.Items {
		moves[i] = StockMovement{ProductID: it.ProductID, Delta: -it.Quantity}
	}
	return OrderCreatedEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       moves,
		CreatedAt:   o.CreatedAt,
	}
}

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	moves := make([]StockMovement, len(o.Items))
	for i, it := range o.Items {
		moves[i] = StockMovement{ProductID: it.ProductID, Delta: it.Quantity}
	}
	return OrderCancelledEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Restored:    moves,
		CancelledAt: o.UpdatedAt,
	}
}
