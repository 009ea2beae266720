package memory

import (
	"context"
	"sort"

	"order-ledger/internal/domain"
)

type productStore struct{ db *DB }

func (p productStore) Create(_ context.Context, prod *domain.Product) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	now := p.db.now()
	p.db.st.ids.product++
	prod.ID = p.db.st.ids.product
	prod.CreatedAt = now
	prod.UpdatedAt = now
	p.db.st.products[prod.ID] = *prod
	return nil
}

func (p productStore) FindByID(_ context.Context, id uint64) (*domain.Product, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	prod, ok := p.db.st.products[id]
	if !ok {
		return nil, nil
	}
	return &prod, nil
}

func (p productStore) List(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	var out []domain.Product
	for _, prod := range p.db.st.products {
		if !includeInactive && !prod.Active {
			continue
		}
		out = append(out, prod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p productStore) Update(_ context.Context, id uint64, patch domain.ProductPatch) (*domain.Product, error) {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	prod, ok := p.db.st.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if cols := patch.Apply(&prod); len(cols) > 0 {
		prod.UpdatedAt = p.db.now()
		p.db.st.products[id] = prod
	}
	return &prod, nil
}

type cartStore struct{ db *DB }

func (c cartStore) FindByUser(_ context.Context, userID uint64) (*domain.Cart, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return c.withItems(userID), nil
}

func (c cartStore) GetOrCreate(_ context.Context, userID uint64) (*domain.Cart, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if cart := c.withItems(userID); cart != nil {
		return cart, nil
	}
	now := c.db.now()
	c.db.st.ids.cart++
	cart := domain.Cart{ID: c.db.st.ids.cart, UserID: userID, CreatedAt: now, UpdatedAt: now}
	c.db.st.carts[cart.ID] = cart
	return &cart, nil
}

func (c cartStore) Lines(_ context.Context, cartID uint64) ([]domain.CartLine, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return c.db.st.lines(cartID, false), nil
}

func (c cartStore) SetItem(_ context.Context, cartID, productID uint64, quantity int64) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if _, ok := c.db.st.carts[cartID]; !ok {
		return domain.ErrNoCart
	}
	now := c.db.now()
	for id, it := range c.db.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity = quantity
			it.UpdatedAt = now
			c.db.st.cartItems[id] = it
			return nil
		}
	}
	c.db.st.ids.cartItem++
	id := c.db.st.ids.cartItem
	c.db.st.cartItems[id] = domain.CartItem{
		ID: id, CartID: cartID, ProductID: productID, Quantity: quantity,
		CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (c cartStore) AddItem(_ context.Context, cartID, productID uint64, delta int64) (int64, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	if _, ok := c.db.st.carts[cartID]; !ok {
		return 0, domain.ErrNoCart
	}
	prod, ok := c.db.st.products[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	if !prod.Active {
		return 0, domain.ErrProductInactive
	}

	now := c.db.now()
	for id, it := range c.db.st.cartItems {
		if it.CartID != cartID || it.ProductID != productID {
			continue
		}
		total := it.Quantity + delta
		if total > prod.StockQuantity {
			return 0, stockShort(prod, total)
		}
		it.Quantity = total
		it.UpdatedAt = now
		c.db.st.cartItems[id] = it
		return total, nil
	}
	if delta > prod.StockQuantity {
		return 0, stockShort(prod, delta)
	}
	c.db.st.ids.cartItem++
	id := c.db.st.ids.cartItem
	c.db.st.cartItems[id] = domain.CartItem{
		ID: id, CartID: cartID, ProductID: productID, Quantity: delta,
		CreatedAt: now, UpdatedAt: now,
	}
	return delta, nil
}

func stockShort(p domain.Product, requested int64) error {
	return &domain.InsufficientStockError{
		ProductID: p.ID, ProductName: p.Name, Available: p.StockQuantity, Requested: requested,
	}
}

func (c cartStore) RemoveItem(_ context.Context, cartID, productID uint64) (bool, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	for id, it := range c.db.st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			delete(c.db.st.cartItems, id)
			return true, nil
		}
	}
	return false, nil
}

func (c cartStore) Clear(_ context.Context, cartID uint64) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	for id, it := range c.db.st.cartItems {
		if it.CartID == cartID {
			delete(c.db.st.cartItems, id)
		}
	}
	return nil
}

// withItems must be called with the mutex held.
func (c cartStore) withItems(userID uint64) *domain.Cart {
	cart, ok := c.db.st.cartByUser(userID)
	if !ok {
		return nil
	}
	cart.Items = c.db.st.itemsOf(cart.ID)
	return &cart
}
