package repository

import (
	"context"
	"errors"
	"time"

	"order-ledger/internal/domain"
)

// ErrStockConflict is returned by Tx.AdjustStock when a decrement would take
// stock below zero.
var ErrStockConflict = errors.New("stock would become negative")

// Tx is the unit of work the order ledger runs inside. Every row it reads for
// writing is locked until the surrounding transaction ends.
type Tx interface {
	// FindCartByUser locks and returns the user's cart, or nil when the user has none.
	FindCartByUser(userID uint64) (*domain.Cart, error)
	// CartLines returns the cart's items joined with their active products,
	// ordered by product id, with the product rows locked.
	CartLines(cartID uint64) ([]domain.CartLine, error)
	InsertOrder(order *domain.Order) error
	AdjustStock(productID uint64, delta int64) error
	ClearCart(cartID uint64) error
	// LockOrder returns the order with its items, or nil when it does not exist.
	LockOrder(orderID uint64) (*domain.Order, error)
	UpdateOrderStatus(orderID uint64, status domain.OrderStatus, at time.Time) error
}

type OrderRepository interface {
	// WithinTx runs fn in one transaction, committing only when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
}
