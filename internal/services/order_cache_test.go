package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/mocks"
	"order-ledger/internal/repository"
	"order-ledger/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mapCache is an in-process cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	default:
		c.data[key] = fmt.Sprint(v)
	}
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) GenerateKey(operation, key string) string {
	return "ledger:" + operation + ":" + key
}

// stallingRepo parks the next FindByID after it has read the row until
// release is closed.
type stallingRepo struct {
	repository.OrderRepository
	stall   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (r *stallingRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	o, err := r.OrderRepository.FindByID(ctx, id)
	if r.stall.CompareAndSwap(true, false) {
		r.read <- struct{}{}
		<-r.release
	}
	return o, err
}

func TestOrderService_GetOrder_WriteDuringMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	p, err := NewProductService(db.Products()).Create(ctx, "Kettle", "", decimal.RequireFromString("12.00"), 4)
	require.NoError(t, err)
	_, err = NewCartService(db.Carts(), db.Products()).AddItem(ctx, 1, p.ID, 2)
	require.NoError(t, err)
	placed, err := NewOrderService(db.Orders(), nil).CreateOrder(ctx, 1, shipTo, nil)
	require.NoError(t, err)

	repo := &stallingRepo{OrderRepository: db.Orders(), read: make(chan struct{}), release: make(chan struct{})}
	repo.stall.Store(true)
	c := newMapCache()
	svc := NewOrderService(repo, nil)
	svc.SetCache(c, time.Minute)

	type result struct {
		o   *domain.Order
		err error
	}
	done := make(chan result, 1)
	go func() {
		o, err := svc.GetOrder(ctx, placed.ID, 1, false)
		done <- result{o, err}
	}()

	<-repo.read
	_, err = svc.CancelOrder(ctx, placed.ID, 1, false)
	require.NoError(t, err)
	close(repo.release)

	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, domain.StatusPending, first.o.Status)

	if raw, _ := c.Get(ctx, svc.cacheKey(placed.ID)); raw != "" {
		var cached domain.Order
		require.NoError(t, json.Unmarshal([]byte(raw), &cached))
		assert.Equal(t, domain.StatusCancelled, cached.Status)
	}

	got, err := svc.GetOrder(ctx, placed.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestOrderService_FillCacheSkipsAfterEviction(t *testing.T) {
	svc, _, _ := newMockedService()
	c := newMapCache()
	svc.SetCache(c, time.Minute)
	o := pendingOrder(5, 1)

	gen := svc.generation(5)
	svc.evict(context.Background(), 5)
	svc.fillCache(context.Background(), o, gen)

	raw, _ := c.Get(context.Background(), svc.cacheKey(5))
	assert.Empty(t, raw)

	svc.fillCache(context.Background(), o, svc.generation(5))
	raw, _ = c.Get(context.Background(), svc.cacheKey(5))
	assert.NotEmpty(t, raw)
}

func TestOrderService_GetOrder_SharedLoadIgnoresCallerCancel(t *testing.T) {
	svc, repo, _ := newMockedService()
	c := new(mocks.MockCache)
	svc.SetCache(c, time.Minute)
	c.On("Get", mock.Anything, "test:order:5").Return("", nil)
	c.On("Set", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "test:order:5", mock.Anything, time.Minute).Return(nil)
	repo.On("FindByID", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), uint64(5)).Return(pendingOrder(5, 1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, err := svc.GetOrder(ctx, 5, 1, false)

	require.NoError(t, err)
	assert.Equal(t, uint64(5), o.ID)
	repo.AssertExpectations(t)
	c.AssertExpectations(t)
}
