package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidatePrice(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"0.01", true},
		{"10", true},
		{"10.50", true},
		{"0", false},
		{"-1.00", false},
		{"1.005", false},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := ValidatePrice(decimal.RequireFromString(tt.price))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPrice)
			}
		})
	}
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{Name: "Desk", Price: decimal.RequireFromString("99.00"), StockQuantity: 0}
	assert.NoError(t, valid.Validate())

	noName := valid
	noName.Name = "   "
	assert.ErrorIs(t, noName.Validate(), ErrInvalidProduct)

	negative := valid
	negative.StockQuantity = -1
	assert.ErrorIs(t, negative.Validate(), ErrInvalidQuantity)
}

func TestProductPatch_Apply(t *testing.T) {
	name := "  Standing desk "
	price := decimal.RequireFromString("149.99")
	active := false
	patch := ProductPatch{Name: &name, Price: &price, Active: &active}

	assert.False(t, patch.Empty())
	assert.NoError(t, patch.Validate())

	p := Product{ID: 1, Name: "Desk", Description: "oak", Price: decimal.RequireFromString("99.00"), StockQuantity: 4, Active: true}
	cols := patch.Apply(&p)

	assert.Equal(t, []string{"name", "price", "active"}, cols)
	assert.Equal(t, "Standing desk", p.Name)
	assert.Equal(t, "oak", p.Description)
	assert.True(t, price.Equal(p.Price))
	assert.Equal(t, int64(4), p.StockQuantity)
	assert.False(t, p.Active)
}

func TestProductPatch_Validate(t *testing.T) {
	assert.True(t, ProductPatch{}.Empty())

	blank := ""
	assert.ErrorIs(t, ProductPatch{Name: &blank}.Validate(), ErrInvalidProduct)

	cheap := decimal.Zero
	assert.ErrorIs(t, ProductPatch{Price: &cheap}.Validate(), ErrInvalidPrice)

	neg := int64(-3)
	assert.ErrorIs(t, ProductPatch{StockQuantity: &neg}.Validate(), ErrInvalidQuantity)
}

func TestCartLine_Subtotal(t *testing.T) {
	l := CartLine{Quantity: 4, UnitPrice: decimal.RequireFromString("2.25")}
	assert.Equal(t, "9.00", l.Subtotal().StringFixed(2))
}
