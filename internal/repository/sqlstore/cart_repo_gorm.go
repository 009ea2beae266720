package sqlstore

import (
	"context"
	"errors"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepo struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) repository.CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) FindByUser(ctx context.Context, userID uint64) (*domain.Cart, error) {
	var c domain.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", itemsByProduct).
		Where("user_id = ?", userID).
		Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// GetOrCreate relies on the unique user_id index: a concurrent insert for the
// same user is absorbed by ON CONFLICT DO NOTHING and the row is read back.
func (r *cartRepo) GetOrCreate(ctx context.Context, userID uint64) (*domain.Cart, error) {
	c := domain.Cart{UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&c).Error
	if err != nil {
		return nil, err
	}
	cart, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, errors.New("cart vanished after create")
	}
	return cart, nil
}

func (r *cartRepo) Lines(ctx context.Context, cartID uint64) ([]domain.CartLine, error) {
	var items []domain.CartItem
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", cartID).Order("product_id").Find(&items).Error; err != nil {
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
	if err := db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return joinLines(items, products, false), nil
}

// SetItem locks the cart row first so it serialises with checkout.
func (r *cartRepo) SetItem(ctx context.Context, cartID, productID uint64, quantity int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Cart
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&c, cartID).Error; err != nil {
			return err
		}
		item := domain.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).Create(&item).Error
	})
}

// AddItem increments in SQL under the cart row lock, so concurrent adds for
// the same line accumulate.
func (r *cartRepo) AddItem(ctx context.Context, cartID, productID uint64, delta int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Cart
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&c, cartID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNoCart
			}
			return err
		}

		var p domain.Product
		if err := tx.Take(&p, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return err
		}
		if !p.Active {
			return domain.ErrProductInactive
		}

		var existing domain.CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).Take(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		total = existing.Quantity + delta
		if total > p.StockQuantity {
			return &domain.InsufficientStockError{
				ProductID: p.ID, ProductName: p.Name, Available: p.StockQuantity, Requested: total,
			}
		}

		item := domain.CartItem{CartID: cartID, ProductID: productID, Quantity: delta}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + ?", delta),
				"updated_at": time.Now().UTC(),
			}),
		}).Create(&item).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *cartRepo) RemoveItem(ctx context.Context, cartID, productID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&domain.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *cartRepo) Clear(ctx context.Context, cartID uint64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&domain.CartItem{}).Error
}
