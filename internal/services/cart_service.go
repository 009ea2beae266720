package services

import (
	"context"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// CartView is a user's cart priced at current product prices. Total only
// counts lines whose product is still active.
type CartView struct {
	CartID uint64            `json:"cart_id"`
	UserID uint64            `json:"user_id"`
	Lines  []domain.CartLine `json:"lines"`
	Total  decimal.Decimal   `json:"total"`
}

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// Get returns the user's cart, or an empty view when none exists yet.
func (s *CartService) Get(ctx context.Context, userID uint64) (*CartView, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapTx("get cart", err)
	}
	if cart == nil {
		return &CartView{UserID: userID, Lines: []domain.CartLine{}, Total: decimal.Zero}, nil
	}
	return s.view(ctx, cart)
}

// AddItem adds quantity units of a product, merging with any existing line.
// The stock check here is advisory; checkout re-checks under lock.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint64, quantity int64) (*CartView, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if _, err := s.available(ctx, productID); err != nil {
		return nil, err
	}

	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, domain.WrapTx("add cart item", err)
	}
	if _, err := s.carts.AddItem(ctx, cart.ID, productID, quantity); err != nil {
		return nil, domain.WrapTx("add cart item", err)
	}
	return s.view(ctx, cart)
}

// SetItemQuantity replaces the quantity of a line already in the cart.
func (s *CartService) SetItemQuantity(ctx context.Context, userID, productID uint64, quantity int64) (*CartView, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapTx("update cart item", err)
	}
	if cart == nil || findItem(cart, productID) == nil {
		return nil, domain.ErrCartItemNotFound
	}
	p, err := s.available(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.StockQuantity {
		return nil, &domain.InsufficientStockError{
			ProductID: p.ID, ProductName: p.Name, Available: p.StockQuantity, Requested: quantity,
		}
	}
	if err := s.carts.SetItem(ctx, cart.ID, productID, quantity); err != nil {
		return nil, domain.WrapTx("update cart item", err)
	}
	return s.view(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint64) (*CartView, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapTx("remove cart item", err)
	}
	if cart == nil {
		return nil, domain.ErrCartItemNotFound
	}
	removed, err := s.carts.RemoveItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, domain.WrapTx("remove cart item", err)
	}
	if !removed {
		return nil, domain.ErrCartItemNotFound
	}
	return s.view(ctx, cart)
}

// Clear empties the cart. Clearing a user without a cart is a no-op.
func (s *CartService) Clear(ctx context.Context, userID uint64) error {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return domain.WrapTx("clear cart", err)
	}
	if cart == nil {
		return nil
	}
	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return domain.WrapTx("clear cart", err)
	}
	return nil
}

func (s *CartService) available(ctx context.Context, productID uint64) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, domain.WrapTx("get product", err)
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	if !p.Active {
		return nil, domain.ErrProductInactive
	}
	return p, nil
}

func (s *CartService) view(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	lines, err := s.carts.Lines(ctx, cart.ID)
	if err != nil {
		return nil, domain.WrapTx("get cart", err)
	}
	v := &CartView{CartID: cart.ID, UserID: cart.UserID, Lines: lines, Total: decimal.Zero}
	if v.Lines == nil {
		v.Lines = []domain.CartLine{}
	}
	for _, l := range lines {
		if l.Active {
			v.Total = v.Total.Add(l.Subtotal())
		}
	}
	return v, nil
}

func findItem(cart *domain.Cart, productID uint64) *domain.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			return &cart.Items[i]
		}
	}
	return nil
}
