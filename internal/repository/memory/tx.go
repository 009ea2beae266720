package memory

import (
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"
)

type memTx struct {
	db *DB
	st *state
}

func (t *memTx) FindCartByUser(userID uint64) (*domain.Cart, error) {
	if err := t.db.takeFault("FindCartByUser"); err != nil {
		return nil, err
	}
	c, ok := t.st.cartByUser(userID)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) CartLines(cartID uint64) ([]domain.CartLine, error) {
	if err := t.db.takeFault("CartLines"); err != nil {
		return nil, err
	}
	return t.st.lines(cartID, true), nil
}

func (t *memTx) InsertOrder(order *domain.Order) error {
	if err := t.db.takeFault("InsertOrder"); err != nil {
		return err
	}
	now := t.db.now()
	t.st.ids.order++
	order.ID = t.st.ids.order
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	for i := range order.Items {
		t.st.ids.orderItem++
		order.Items[i].ID = t.st.ids.orderItem
		order.Items[i].OrderID = order.ID
	}
	t.st.orders[order.ID] = copyOrder(*order)
	return nil
}

func (t *memTx) AdjustStock(productID uint64, delta int64) error {
	if err := t.db.takeFault("AdjustStock"); err != nil {
		return err
	}
	p, ok := t.st.products[productID]
	if !ok {
		if delta < 0 {
			return repository.ErrStockConflict
		}
		return domain.ErrProductNotFound
	}
	if p.StockQuantity+delta < 0 {
		return repository.ErrStockConflict
	}
	p.StockQuantity += delta
	p.UpdatedAt = t.db.now()
	t.st.products[productID] = p
	return nil
}

func (t *memTx) ClearCart(cartID uint64) error {
	if err := t.db.takeFault("ClearCart"); err != nil {
		return err
	}
	for id, it := range t.st.cartItems {
		if it.CartID == cartID {
			delete(t.st.cartItems, id)
		}
	}
	return nil
}

func (t *memTx) LockOrder(orderID uint64) (*domain.Order, error) {
	if err := t.db.takeFault("LockOrder"); err != nil {
		return nil, err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (t *memTx) UpdateOrderStatus(orderID uint64, status domain.OrderStatus, at time.Time) error {
	if err := t.db.takeFault("UpdateOrderStatus"); err != nil {
		return err
	}
	o, ok := t.st.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[orderID] = o
	return nil
}
