package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, db *DB, name string, price string, stock int64, active bool) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock, Active: active}
	require.NoError(t, db.Products().Create(context.Background(), p))
	return p
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	db := New()
	p := seedProduct(t, db, "Pen", "1.50", 10, true)

	err := db.Orders().WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.AdjustStock(p.ID, -4)
	})
	require.NoError(t, err)

	stock, ok := db.ProductStock(p.ID)
	require.True(t, ok)
	assert.Equal(t, int64(6), stock)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := New()
	p := seedProduct(t, db, "Pen", "1.50", 10, true)
	boom := errors.New("boom")

	err := db.Orders().WithinTx(context.Background(), func(tx repository.Tx) error {
		require.NoError(t, tx.AdjustStock(p.ID, -4))
		require.NoError(t, tx.InsertOrder(&domain.Order{UserID: 1, Status: domain.StatusPending}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stock, _ := db.ProductStock(p.ID)
	assert.Equal(t, int64(10), stock)
	orders, err := db.Orders().List(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	db := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := db.Orders().WithinTx(ctx, func(tx repository.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInjectFault_FiresOnce(t *testing.T) {
	db := New()
	p := seedProduct(t, db, "Pen", "1.50", 10, true)
	boom := errors.New("lock wait timeout")
	db.InjectFault("AdjustStock", boom)

	run := func() error {
		return db.Orders().WithinTx(context.Background(), func(tx repository.Tx) error {
			return tx.AdjustStock(p.ID, -1)
		})
	}
	assert.ErrorIs(t, run(), boom)
	assert.NoError(t, run())

	stock, _ := db.ProductStock(p.ID)
	assert.Equal(t, int64(9), stock)
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	db := New()
	p := seedProduct(t, db, "Pen", "1.50", 2, true)

	err := db.Orders().WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.AdjustStock(p.ID, -3)
	})
	assert.ErrorIs(t, err, repository.ErrStockConflict)

	err = db.Orders().WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.AdjustStock(999, 1)
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCartLines_SkipsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	db := New()
	a := seedProduct(t, db, "A", "2.00", 5, true)
	b := seedProduct(t, db, "B", "3.00", 5, false)

	cart, err := db.Carts().GetOrCreate(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, db.Carts().SetItem(ctx, cart.ID, b.ID, 1))
	require.NoError(t, db.Carts().SetItem(ctx, cart.ID, a.ID, 2))

	all, err := db.Carts().Lines(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ProductID)

	err = db.Orders().WithinTx(ctx, func(tx repository.Tx) error {
		c, err := tx.FindCartByUser(42)
		require.NoError(t, err)
		require.NotNil(t, c)
		lines, err := tx.CartLines(c.ID)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, a.ID, lines[0].ProductID)
		assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("2.00")))
		return nil
	})
	require.NoError(t, err)
}

func TestCartStore_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := New()

	first, err := db.Carts().GetOrCreate(ctx, 7)
	require.NoError(t, err)
	second, err := db.Carts().GetOrCreate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	missing, err := db.Carts().FindByUser(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, db.Carts().SetItem(ctx, 999, 1, 1), domain.ErrNoCart)
}

func TestCartStore_AddItem(t *testing.T) {
	ctx := context.Background()
	db := New()
	p := seedProduct(t, db, "A", "2.00", 5, true)
	off := seedProduct(t, db, "B", "2.00", 5, false)
	cart, err := db.Carts().GetOrCreate(ctx, 1)
	require.NoError(t, err)

	const adders = 4
	var wg sync.WaitGroup
	for i := 0; i < adders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.Carts().AddItem(ctx, cart.ID, p.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := db.Carts().FindByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(adders), c.Items[0].Quantity)

	_, err = db.Carts().AddItem(ctx, cart.ID, p.ID, 2)
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(6), stockErr.Requested)

	total, err := db.Carts().AddItem(ctx, cart.ID, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = db.Carts().AddItem(ctx, cart.ID, off.ID, 1)
	assert.ErrorIs(t, err, domain.ErrProductInactive)
	_, err = db.Carts().AddItem(ctx, cart.ID, 999, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = db.Carts().AddItem(ctx, 999, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNoCart)
}

func TestCartStore_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	db := New()
	p := seedProduct(t, db, "A", "2.00", 5, true)
	cart, err := db.Carts().GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, db.Carts().SetItem(ctx, cart.ID, p.ID, 2))
	require.NoError(t, db.Carts().SetItem(ctx, cart.ID, p.ID, 3))

	c, err := db.Carts().FindByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(3), c.Items[0].Quantity)

	removed, err := db.Carts().RemoveItem(ctx, cart.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = db.Carts().RemoveItem(ctx, cart.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, db.Carts().SetItem(ctx, cart.ID, p.ID, 1))
	require.NoError(t, db.Carts().Clear(ctx, cart.ID))
	lines, err := db.Carts().Lines(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderStore_ListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	db := New()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	insert := func(userID uint64, status domain.OrderStatus, at time.Time) {
		err := db.Orders().WithinTx(ctx, func(tx repository.Tx) error {
			return tx.InsertOrder(&domain.Order{UserID: userID, Status: status, CreatedAt: at, UpdatedAt: at})
		})
		require.NoError(t, err)
	}
	insert(1, domain.StatusPending, base)
	insert(2, domain.StatusShipped, base.Add(time.Hour))
	insert(1, domain.StatusShipped, base.Add(2*time.Hour))

	all, err := db.Orders().List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{3, 2, 1}, []uint64{all[0].ID, all[1].ID, all[2].ID})

	uid := uint64(1)
	mine, err := db.Orders().List(ctx, domain.OrderFilter{UserID: &uid})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	shipped := domain.StatusShipped
	both, err := db.Orders().List(ctx, domain.OrderFilter{UserID: &uid, Status: &shipped})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, uint64(3), both[0].ID)
}

func TestProductStore_Update(t *testing.T) {
	ctx := context.Background()
	db := New()
	p := seedProduct(t, db, "A", "2.00", 5, true)

	stock := int64(50)
	got, err := db.Products().Update(ctx, p.ID, domain.ProductPatch{StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.StockQuantity)

	_, err = db.Products().Update(ctx, 999, domain.ProductPatch{StockQuantity: &stock})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	active, err := db.Products().List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
