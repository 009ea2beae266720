package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

// Migrate creates or updates every table the store needs.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Product{},
		&domain.Cart{},
		&domain.CartItem{},
		&domain.Order{},
		&domain.OrderItem{},
	)
}

func (r *orderRepo) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&gormTx{db: gtx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Items", itemsByProduct).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "order lookup failed", "order_id", id, "error", err)
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items", itemsByProduct)
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}

	var out []domain.Order
	if err := q.Order("created_at DESC").Order("id DESC").Find(&out).Error; err != nil {
		slog.ErrorContext(ctx, "order list failed", "error", err)
		return nil, err
	}
	return out, nil
}

func itemsByProduct(db *gorm.DB) *gorm.DB {
	return db.Order("product_id")
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) locked() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) FindCartByUser(userID uint64) (*domain.Cart, error) {
	var c domain.Cart
	if err := t.locked().Where("user_id = ?", userID).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CartLines locks product rows with a primary-key range scan in id order so
// concurrent checkouts always acquire them in the same sequence.
func (t *gormTx) CartLines(cartID uint64) ([]domain.CartLine, error) {
	var items []domain.CartItem
	if err := t.db.Where("cart_id = ?", cartID).Order("product_id").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	var products []domain.Product
	if err := t.locked().Where("id IN ? AND active = ?", ids, true).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return joinLines(items, products, true), nil
}

func (t *gormTx) InsertOrder(order *domain.Order) error {
	return t.db.Create(order).Error
}

func (t *gormTx) AdjustStock(productID uint64, delta int64) error {
	q := t.db.Model(&domain.Product{}).Where("id = ?", productID)
	if delta < 0 {
		q = q.Where("stock_quantity >= ?", -delta)
	}
	res := q.Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if delta < 0 {
			return repository.ErrStockConflict
		}
		return domain.ErrProductNotFound
	}
	return nil
}

func (t *gormTx) ClearCart(cartID uint64) error {
	return t.db.Where("cart_id = ?", cartID).Delete(&domain.CartItem{}).Error
}

func (t *gormTx) LockOrder(orderID uint64) (*domain.Order, error) {
	var o domain.Order
	if err := t.locked().Take(&o, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := t.db.Where("order_id = ?", o.ID).Order("product_id").Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *gormTx) UpdateOrderStatus(orderID uint64, status domain.OrderStatus, at time.Time) error {
	return t.db.Model(&domain.Order{}).Where("id = ?", orderID).Updates(map[string]any{
		"status":     status,
		"updated_at": at,
	}).Error
}

// joinLines pairs cart items with their products, keeping item order. Items
// whose product is missing from products are dropped when activeOnly is set.
func joinLines(items []domain.CartItem, products []domain.Product, activeOnly bool) []domain.CartLine {
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
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
