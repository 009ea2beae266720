package services

import (
	"context"
	"sync"
	"testing"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"
	"order-ledger/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture(t *testing.T) (*CartService, *ProductService) {
	t.Helper()
	db := memory.New()
	return NewCartService(db.Carts(), db.Products()), NewProductService(db.Products())
}

func TestCartService_GetWithoutCart(t *testing.T) {
	carts, _ := newCartFixture(t)

	v, err := carts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, v.CartID)
	assert.Empty(t, v.Lines)
	assert.True(t, v.Total.IsZero())
}

func TestCartService_AddItemMergesQuantity(t *testing.T) {
	ctx := context.Background()
	carts, products := newCartFixture(t)
	p, err := products.Create(ctx, "Tea", "green", decimal.RequireFromString("3.20"), 10)
	require.NoError(t, err)

	_, err = carts.AddItem(ctx, 1, p.ID, 2)
	require.NoError(t, err)
	v, err := carts.AddItem(ctx, 1, p.ID, 3)
	require.NoError(t, err)

	require.Len(t, v.Lines, 1)
	assert.Equal(t, int64(5), v.Lines[0].Quantity)
	assert.Equal(t, "16.00", v.Total.StringFixed(2))
}

// barrierCarts holds every GetOrCreate caller until all of them have read
// the cart.
type barrierCarts struct {
	repository.CartRepository
	wg sync.WaitGroup
}

func (b *barrierCarts) GetOrCreate(ctx context.Context, userID uint64) (*domain.Cart, error) {
	c, err := b.CartRepository.GetOrCreate(ctx, userID)
	b.wg.Done()
	b.wg.Wait()
	return c, err
}

func TestCartService_ConcurrentAddsAccumulate(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	products := NewProductService(db.Products())
	p, err := products.Create(ctx, "Tea", "", decimal.RequireFromString("3.20"), 10)
	require.NoError(t, err)

	const shoppers = 2
	gated := &barrierCarts{CartRepository: db.Carts()}
	gated.wg.Add(shoppers)
	carts := NewCartService(gated, db.Products())

	var wg sync.WaitGroup
	errs := make(chan error, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := carts.AddItem(ctx, 1, p.ID, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	v, err := NewCartService(db.Carts(), db.Products()).Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, int64(shoppers), v.Lines[0].Quantity)
}

func TestCartService_AddItemValidation(t *testing.T) {
	ctx := context.Background()
	carts, products := newCartFixture(t)
	p, err := products.Create(ctx, "Tea", "", decimal.RequireFromString("3.20"), 2)
	require.NoError(t, err)
	gone, err := products.Create(ctx, "Coffee", "", decimal.RequireFromString("4.00"), 2)
	require.NoError(t, err)
	_, err = products.Deactivate(ctx, gone.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		productID uint64
		qty       int64
		wantErr   error
	}{
		{"zero quantity", p.ID, 0, domain.ErrInvalidQuantity},
		{"negative quantity", p.ID, -1, domain.ErrInvalidQuantity},
		{"unknown product", 999, 1, domain.ErrProductNotFound},
		{"inactive product", gone.ID, 1, domain.ErrProductInactive},
		{"more than in stock", p.ID, 3, domain.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := carts.AddItem(ctx, 1, tt.productID, tt.qty)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = carts.AddItem(ctx, 1, p.ID, 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, p.ID, 1)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(3), stockErr.Requested)
}

func TestCartService_SetItemQuantity(t *testing.T) {
	ctx := context.Background()
	carts, products := newCartFixture(t)
	p, err := products.Create(ctx, "Tea", "", decimal.RequireFromString("1.00"), 5)
	require.NoError(t, err)

	_, err = carts.SetItemQuantity(ctx, 1, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	_, err = carts.AddItem(ctx, 1, p.ID, 4)
	require.NoError(t, err)

	v, err := carts.SetItemQuantity(ctx, 1, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Lines[0].Quantity)

	_, err = carts.SetItemQuantity(ctx, 1, p.ID, 6)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, err = carts.SetItemQuantity(ctx, 1, p.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCartService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	carts, products := newCartFixture(t)
	a, err := products.Create(ctx, "A", "", decimal.RequireFromString("1.00"), 5)
	require.NoError(t, err)
	b, err := products.Create(ctx, "B", "", decimal.RequireFromString("2.00"), 5)
	require.NoError(t, err)

	_, err = carts.RemoveItem(ctx, 1, a.ID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
	assert.NoError(t, carts.Clear(ctx, 1))

	_, err = carts.AddItem(ctx, 1, a.ID, 1)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, b.ID, 1)
	require.NoError(t, err)

	v, err := carts.RemoveItem(ctx, 1, a.ID)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, b.ID, v.Lines[0].ProductID)

	_, err = carts.RemoveItem(ctx, 1, a.ID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)

	require.NoError(t, carts.Clear(ctx, 1))
	v, err = carts.Get(ctx, 1)
	require.NoError(t, err)
	assert.NotZero(t, v.CartID)
	assert.Empty(t, v.Lines)
}

func TestCartService_TotalIgnoresInactiveLines(t *testing.T) {
	ctx := context.Background()
	carts, products := newCartFixture(t)
	a, err := products.Create(ctx, "A", "", decimal.RequireFromString("1.00"), 5)
	require.NoError(t, err)
	b, err := products.Create(ctx, "B", "", decimal.RequireFromString("2.00"), 5)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, a.ID, 1)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, 1, b.ID, 1)
	require.NoError(t, err)

	_, err = products.Deactivate(ctx, b.ID)
	require.NoError(t, err)

	v, err := carts.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, v.Lines, 2)
	assert.Equal(t, "1.00", v.Total.StringFixed(2))
}
