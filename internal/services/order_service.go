package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"order-ledger/internal/cache"
	"order-ledger/internal/domain"
	rabbit "order-ledger/internal/infra/rabbitmq"
	"order-ledger/internal/repository"

	"golang.org/x/sync/singleflight"
)

const (
	defaultPublishTimeout = 2 * time.Second

	// cacheStripes bounds the eviction generation table; orders share a
	// counter when their ids collide modulo the stripe count.
	cacheStripes = 64

	minAddressLen = 10
	maxAddressLen = 500
)

type OrderService struct {
	repo           repository.OrderRepository
	publisher      rabbit.PublisherInterface
	cache          cache.Cache
	cacheTTL       time.Duration
	publishTimeout time.Duration
	loads          singleflight.Group
	evictions      [cacheStripes]atomic.Uint64
	now            func() time.Time
}

func NewOrderService(r repository.OrderRepository, pub rabbit.PublisherInterface) *OrderService {
	if pub == nil {
		pub = rabbit.NopPublisher{}
	}
	return &OrderService{
		repo:           r,
		publisher:      pub,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
}

// SetCache enables cache-aside reads of hydrated orders.
func (u *OrderService) SetCache(c cache.Cache, ttl time.Duration) {
	u.cache = c
	u.cacheTTL = ttl
}

func (u *OrderService) SetPublishTimeout(d time.Duration) {
	if d > 0 {
		u.publishTimeout = d
	}
}

// CreateOrder converts the user's cart into a pending order in one
// transaction: stock is checked for every line before anything is written,
// then the order is inserted, stock decremented and the cart emptied.
func (u *OrderService) CreateOrder(ctx context.Context, userID uint64, shippingAddress string, billingAddress *string) (*domain.Order, error) {
	shippingAddress = strings.TrimSpace(shippingAddress)
	if !validAddress(shippingAddress) {
		return nil, fmt.Errorf("%w: shipping address must be %d-%d characters", domain.ErrInvalidAddress, minAddressLen, maxAddressLen)
	}
	billing := shippingAddress
	if billingAddress != nil {
		if b := strings.TrimSpace(*billingAddress); b != "" {
			if !validAddress(b) {
				return nil, fmt.Errorf("%w: billing address must be %d-%d characters", domain.ErrInvalidAddress, minAddressLen, maxAddressLen)
			}
			billing = b
		}
	}

	var order *domain.Order
	err := u.repo.WithinTx(ctx, func(tx repository.Tx) error {
		cart, err := tx.FindCartByUser(userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return domain.ErrNoCart
		}

		lines, err := tx.CartLines(cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		if err := checkStock(lines); err != nil {
			return err
		}

		now := u.now()
		order = &domain.Order{
			UserID:          userID,
			Status:          domain.StatusPending,
			ShippingAddress: shippingAddress,
			BillingAddress:  billing,
			Items:           itemsFromLines(lines),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		order.TotalAmount = domain.ItemsTotal(order.Items)

		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := tx.AdjustStock(l.ProductID, -l.Quantity); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return &domain.InsufficientStockError{
						ProductID:   l.ProductID,
						ProductName: l.ProductName,
						Available:   l.StockQuantity,
						Requested:   l.Quantity,
					}
				}
				return err
			}
		}
		return tx.ClearCart(cart.ID)
	})
	if err != nil {
		err = domain.WrapTx("create order", err)
		slog.WarnContext(ctx, "order creation failed", "user_id", userID, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", userID, "total", order.TotalAmount.StringFixed(2), "items", len(order.Items))
	u.storeCached(ctx, order)
	u.publish(ctx, domain.EventOrderCreated, domain.NewOrderCreatedEvent(order))
	return order, nil
}

func validAddress(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= minAddressLen && n <= maxAddressLen
}

// checkStock fails on the first line asking for more than is on hand.
func checkStock(lines []domain.CartLine) error {
	for _, l := range lines {
		if l.Quantity > l.StockQuantity {
			return &domain.InsufficientStockError{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Available:   l.StockQuantity,
				Requested:   l.Quantity,
			}
		}
	}
	return nil
}

func itemsFromLines(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = domain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		}
	}
	return items
}

// UpdateStatus moves an order along the status table. Callers must already be
// authorised as administrators. A move to cancelled runs the cancellation
// path so stock is restored.
func (u *OrderService) UpdateStatus(ctx context.Context, orderID uint64, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if status == domain.StatusCancelled {
		return u.cancel(ctx, orderID, 0, true)
	}

	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := u.repo.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if !o.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, status)
		}

		now := u.now()
		if err := tx.UpdateOrderStatus(o.ID, status, now); err != nil {
			return err
		}
		from = o.Status
		o.Status = status
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return nil, domain.WrapTx("update order status", err)
	}

	slog.InfoContext(ctx, "order status updated", "order_id", orderID, "from", from, "to", status)
	u.evict(ctx, orderID)
	u.publish(ctx, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID: orderID, From: from, To: status, ChangedAt: order.UpdatedAt,
	})
	return order, nil
}

// CancelOrder cancels a pending or processing order owned by the caller (or
// any order when the caller is an administrator) and puts every item's
// quantity back into stock.
func (u *OrderService) CancelOrder(ctx context.Context, orderID, callerUserID uint64, callerIsAdmin bool) (*domain.Order, error) {
	return u.cancel(ctx, orderID, callerUserID, callerIsAdmin)
}

func (u *OrderService) cancel(ctx context.Context, orderID, callerUserID uint64, callerIsAdmin bool) (*domain.Order, error) {
	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := u.repo.WithinTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.ErrOrderNotFound
		}
		if !callerIsAdmin && o.UserID != callerUserID {
			return domain.ErrForbidden
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: order is %s", domain.ErrNotCancellable, o.Status)
		}

		for _, it := range o.Items {
			if err := tx.AdjustStock(it.ProductID, it.Quantity); err != nil {
				return &domain.TransactionError{Op: "restore stock for product " + strconv.FormatUint(it.ProductID, 10), Err: err}
			}
		}

		now := u.now()
		if err := tx.UpdateOrderStatus(o.ID, domain.StatusCancelled, now); err != nil {
			return err
		}
		from = o.Status
		o.Status = domain.StatusCancelled
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		err = domain.WrapTx("cancel order", err)
		slog.WarnContext(ctx, "order cancellation failed", "order_id", orderID, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "order cancelled", "order_id", orderID, "from", from, "items", len(order.Items))
	u.evict(ctx, orderID)
	u.publish(ctx, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
		OrderID: orderID, From: from, To: domain.StatusCancelled, ChangedAt: order.UpdatedAt,
	})
	u.publish(ctx, domain.EventOrderCancelled, domain.NewOrderCancelledEvent(order))
	return order, nil
}

// GetOrder returns an order visible to the caller.
func (u *OrderService) GetOrder(ctx context.Context, orderID, callerUserID uint64, callerIsAdmin bool) (*domain.Order, error) {
	o, err := u.loadOrder(ctx, orderID)
	if err != nil {
		return nil, domain.WrapTx("get order", err)
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !callerIsAdmin && o.UserID != callerUserID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (u *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders, err := u.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapTx("list orders", err)
	}
	return orders, nil
}

func (u *OrderService) cacheKey(orderID uint64) string {
	return u.cache.GenerateKey("order", strconv.FormatUint(orderID, 10))
}

// loadOrder reads through the cache; concurrent misses for one order share a
// single repository call. The shared call is detached from the first
// caller's cancellation so one aborted request cannot fail the others.
func (u *OrderService) loadOrder(ctx context.Context, orderID uint64) (*domain.Order, error) {
	if u.cache == nil {
		return u.repo.FindByID(ctx, orderID)
	}

	key := u.cacheKey(orderID)
	if cached, err := u.cache.Get(ctx, key); err == nil && cached != "" {
		var o domain.Order
		if err := json.Unmarshal([]byte(cached), &o); err == nil {
			return &o, nil
		}
	} else if err != nil {
		slog.WarnContext(ctx, "order cache read failed", "order_id", orderID, "error", err)
	}

	v, err, _ := u.loads.Do(key, func() (interface{}, error) {
		lctx := context.WithoutCancel(ctx)
		gen := u.generation(orderID)
		o, err := u.repo.FindByID(lctx, orderID)
		if err != nil || o == nil {
			return o, err
		}
		u.fillCache(lctx, o, gen)
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	o, _ := v.(*domain.Order)
	if o == nil {
		return nil, nil
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (u *OrderService) generation(orderID uint64) uint64 {
	return u.evictions[orderID%cacheStripes].Load()
}

// fillCache stores a copy read at generation gen unless the order was evicted
// since. evict bumps before it deletes, so an eviction racing the Set is
// caught by the second check.
func (u *OrderService) fillCache(ctx context.Context, o *domain.Order, gen uint64) {
	if u.generation(o.ID) != gen {
		return
	}
	u.storeCached(ctx, o)
	if u.generation(o.ID) != gen {
		if err := u.cache.Delete(ctx, u.cacheKey(o.ID)); err != nil {
			slog.WarnContext(ctx, "order cache eviction failed", "order_id", o.ID, "error", err)
		}
	}
}

func (u *OrderService) storeCached(ctx context.Context, o *domain.Order) {
	if u.cache == nil {
		return
	}
	data, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := u.cache.Set(ctx, u.cacheKey(o.ID), data, u.cacheTTL); err != nil {
		slog.WarnContext(ctx, "order cache write failed", "order_id", o.ID, "error", err)
	}
}

func (u *OrderService) evict(ctx context.Context, orderID uint64) {
	if u.cache == nil {
		return
	}
	key := u.cacheKey(orderID)
	u.evictions[orderID%cacheStripes].Add(1)
	u.loads.Forget(key)
	if err := u.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "order cache eviction failed", "order_id", orderID, "error", err)
	}
}

// publish runs after commit; a broker failure is logged and never undoes the
// committed change.
func (u *OrderService) publish(ctx context.Context, pattern string, evt any) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.publishTimeout)
	defer cancel()

	if err := u.publisher.Publish(pctx, pattern, evt); err != nil {
		slog.ErrorContext(ctx, "failed to publish event", "pattern", pattern, "error", err)
		return
	}
	slog.DebugContext(ctx, "published event", "pattern", pattern)
}
