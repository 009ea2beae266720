package repository

import (
	"context"

	"order-ledger/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	// FindByID returns nil, nil when the product does not exist.
	FindByID(ctx context.Context, id uint64) (*domain.Product, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	// Update applies patch to the locked row and returns the stored result.
	Update(ctx context.Context, id uint64, patch domain.ProductPatch) (*domain.Product, error)
}

type CartRepository interface {
	// FindByUser returns the cart with its items, or nil, nil when the user has none.
	FindByUser(ctx context.Context, userID uint64) (*domain.Cart, error)
	GetOrCreate(ctx context.Context, userID uint64) (*domain.Cart, error)
	Lines(ctx context.Context, cartID uint64) ([]domain.CartLine, error)
	// SetItem stores quantity for the product, inserting the line if needed.
	SetItem(ctx context.Context, cartID, productID uint64, quantity int64) error
	// AddItem adds delta to the product's line, inserting it if needed, and
	// returns the new quantity. The product must be active and the new
	// quantity must fit its current stock; both are checked in the same
	// transaction as the write.
	AddItem(ctx context.Context, cartID, productID uint64, delta int64) (int64, error)
	// RemoveItem reports whether a line was deleted.
	RemoveItem(ctx context.Context, cartID, productID uint64) (bool, error)
	Clear(ctx context.Context, cartID uint64) error
}
