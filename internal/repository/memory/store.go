// Package memory is an in-process implementation of the repository ports.
//
// Transactions are serialised behind a single mutex. Each one works on a
// private copy of the state which replaces the live state only when the
// transaction function returns nil, so a failed transaction leaves no trace.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"
)

type DB struct {
	mu     sync.Mutex
	st     *state
	now    func() time.Time
	faults map[string]error
}

func New() *DB {
	return &DB{
		st:     newState(),
		now:    time.Now,
		faults: make(map[string]error),
	}
}

// SetClock replaces the time source used for timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// InjectFault makes the next call to the named Tx method fail with err.
func (db *DB) InjectFault(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[op] = err
}

func (db *DB) Orders() repository.OrderRepository     { return orderStore{db} }
func (db *DB) Products() repository.ProductRepository { return productStore{db} }
func (db *DB) Carts() repository.CartRepository       { return cartStore{db} }

// ProductStock reads a product's stock outside any transaction.
func (db *DB) ProductStock(id uint64) (int64, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.st.products[id]
	return p.StockQuantity, ok
}

func (db *DB) takeFault(op string) error {
	if err, ok := db.faults[op]; ok {
		delete(db.faults, op)
		return err
	}
	return nil
}

type counters struct {
	product, cart, cartItem, order, orderItem uint64
}

type state struct {
	ids       counters
	products  map[uint64]domain.Product
	carts     map[uint64]domain.Cart
	cartItems map[uint64]domain.CartItem
	orders    map[uint64]domain.Order
}

func newState() *state {
	return &state{
		products:  make(map[uint64]domain.Product),
		carts:     make(map[uint64]domain.Cart),
		cartItems: make(map[uint64]domain.CartItem),
		orders:    make(map[uint64]domain.Order),
	}
}

func (s *state) clone() *state {
	c := &state{
		ids:       s.ids,
		products:  make(map[uint64]domain.Product, len(s.products)),
		carts:     make(map[uint64]domain.Cart, len(s.carts)),
		cartItems: make(map[uint64]domain.CartItem, len(s.cartItems)),
		orders:    make(map[uint64]domain.Order, len(s.orders)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (s *state) cartByUser(userID uint64) (domain.Cart, bool) {
	for _, c := range s.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return domain.Cart{}, false
}

func (s *state) itemsOf(cartID uint64) []domain.CartItem {
	var out []domain.CartItem
	for _, it := range s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *state) lines(cartID uint64, activeOnly bool) []domain.CartLine {
	var lines []domain.CartLine
	for _, it := range s.itemsOf(cartID) {
		p, ok := s.products[it.ProductID]
		if !ok || (activeOnly && !p.Active) {
			continue
		}
		lines = append(lines, domain.CartLine{
			CartItemID:    it.ID,
			ProductID:     it.ProductID,
			ProductName:   p.Name,
			Quantity:      it.Quantity,
			UnitPrice:     p.Price,
			StockQuantity: p.StockQuantity,
			Active:        p.Active,
		})
	}
	return lines
}

type orderStore struct{ db *DB }

func (o orderStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.db.mu.Lock()
	defer o.db.mu.Unlock()

	work := o.db.st.clone()
	if err := fn(&memTx{db: o.db, st: work}); err != nil {
		return err
	}
	o.db.st = work
	return nil
}

func (o orderStore) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	ord, ok := o.db.st.orders[id]
	if !ok {
		return nil, nil
	}
	cp := copyOrder(ord)
	return &cp, nil
}

func (o orderStore) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()

	var out []domain.Order
	for _, ord := range o.db.st.orders {
		if filter.UserID != nil && ord.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && ord.Status != *filter.Status {
			continue
		}
		out = append(out, copyOrder(ord))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
