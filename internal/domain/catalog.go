package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string          `json:"name" gorm:"size:255;not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Price         decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	StockQuantity int64           `json:"stock_quantity" gorm:"not null;check:chk_products_stock,stock_quantity >= 0"`
	Active        bool            `json:"active" gorm:"not null;index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// ValidatePrice accepts strictly positive amounts with at most two fractional digits.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() || !p.Equal(p.Round(2)) {
		return ErrInvalidPrice
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProduct
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if p.StockQuantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// ProductPatch carries a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int64           `json:"stock_quantity"`
	Active        *bool            `json:"active"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.StockQuantity == nil && p.Active == nil
}

func (p ProductPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrInvalidProduct
	}
	if p.Price != nil {
		if err := ValidatePrice(*p.Price); err != nil {
			return err
		}
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Apply merges the patch into prod and returns the column names it changed.
func (p ProductPatch) Apply(prod *Product) []string {
	var cols []string
	if p.Name != nil {
		prod.Name = strings.TrimSpace(*p.Name)
		cols = append(cols, "name")
	}
	if p.Description != nil {
		prod.Description = *p.Description
		cols = append(cols, "description")
	}
	if p.Price != nil {
		prod.Price = *p.Price
		cols = append(cols, "price")
	}
	if p.StockQuantity != nil {
		prod.StockQuantity = *p.StockQuantity
		cols = append(cols, "stock_quantity")
	}
	if p.Active != nil {
		prod.Active = *p.Active
		cols = append(cols, "active")
	}
	return cols
}

type Cart struct {
	ID        uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `json:"user_id" gorm:"not null;uniqueIndex"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type CartItem struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CartID    uint64    `json:"cart_id" gorm:"not null;uniqueIndex:ux_cart_items_cart_product"`
	ProductID uint64    `json:"product_id" gorm:"not null;index;uniqueIndex:ux_cart_items_cart_product"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CartLine is a cart item joined with the current state of its product.
type CartLine struct {
	CartItemID    uint64          `json:"cart_item_id"`
	ProductID     uint64          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int64           `json:"stock_quantity"`
	Active        bool            `json:"active"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}
