package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

func TestTransition_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	for _, target := range []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusShipped, model.OrderStatusDelivered} {
		res, err := f.orders.Transition(ctx, order.ID, target, time.Time{}, "")
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, target, res.Order.Status)
	}

	got := f.reload(t, order.ID)
	assert.Equal(t, model.OrderStatusDelivered, got.Status)
	require.NotNil(t, got.PaidAt)
	require.NotNil(t, got.ShippedAt)
	require.NotNil(t, got.DeliveredAt)
	assert.False(t, got.ShippedAt.Before(*got.PaidAt))
	assert.False(t, got.DeliveredAt.Before(*got.ShippedAt))
	assert.Nil(t, got.CancelledAt)

	assert.Equal(t, []string{EventOrderCreated, EventOrderPaid, EventOrderShipped, EventOrderDelivered}, f.outboxTypes(t, order.ID))
}

func TestTransition_AlreadyReachedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	paidAt := time.Now().UTC().Add(time.Minute)
	_, err := f.orders.Transition(ctx, order.ID, model.OrderStatusPaid, paidAt, "")
	require.NoError(t, err)
	_, err = f.orders.Transition(ctx, order.ID, model.OrderStatusShipped, time.Time{}, "")
	require.NoError(t, err)

	// SHIPPED 已经在 PAID 之后
	res, err := f.orders.Transition(ctx, order.ID, model.OrderStatusPaid, time.Time{}, "")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, model.OrderStatusShipped, res.Order.Status)

	got := f.reload(t, order.ID)
	assert.WithinDuration(t, paidAt, *got.PaidAt, time.Millisecond)
}

func TestTransition_InvalidEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	_, err := f.orders.Transition(ctx, order.ID, model.OrderStatusShipped, time.Time{}, "")
	var terr *InvalidTransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, model.OrderStatusCreated, terr.From)
	assert.Equal(t, model.OrderStatusShipped, terr.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orders.Transition(ctx, order.ID, model.OrderStatus("LOST"), time.Time{}, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orders.Transition(ctx, "missing", model.OrderStatusPaid, time.Time{}, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTransition_EventTimeIsClampedToPreviousStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	res, err := f.orders.Transition(ctx, order.ID, model.OrderStatusPaid, order.CreatedAt.Add(-time.Hour), "")
	require.NoError(t, err)
	require.NotNil(t, res.Order.PaidAt)
	assert.WithinDuration(t, order.CreatedAt, *res.Order.PaidAt, time.Millisecond)
}

func TestCancelAndRestock_RestoresRecordedQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	b := testutil.SeedProduct(t, f.store, "B", "20.00", 1)
	order := f.placeOrder(t, "u1", line{a, 2}, line{b, 1})
	require.Equal(t, 3, testutil.Stock(t, f.store, a.ID))

	// 下单后商品被修改不影响归还数量
	require.NoError(t, f.store.Products.UpdatePrice(ctx, a.ID, decimal.RequireFromString("1.00")))
	require.NoError(t, f.store.Products.RestoreStock(ctx, a.ID, 10))

	res, err := f.orders.CancelAndRestock(ctx, order.ID, time.Time{}, "test")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Restocked)
	assert.Equal(t, 15, testutil.Stock(t, f.store, a.ID))
	assert.Equal(t, 1, testutil.Stock(t, f.store, b.ID))

	// 再次取消不重复归还
	res, err = f.orders.CancelAndRestock(ctx, order.ID, time.Time{}, "test")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, 15, testutil.Stock(t, f.store, a.ID))

	got := f.reload(t, order.ID)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, []string{EventOrderCreated, EventOrderCancelled}, f.outboxTypes(t, order.ID))
}

func TestTransitionToCancelledRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 2})
	_, err := f.orders.Transition(ctx, order.ID, model.OrderStatusPaid, time.Time{}, "")
	require.NoError(t, err)

	res, err := f.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled)
	require.NoError(t, err)
	assert.True(t, res.Restocked)
	assert.Equal(t, 5, testutil.Stock(t, f.store, p.ID))
}

func TestCancelAndRestock_RejectsShipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 2})
	_, err := f.orders.Transition(ctx, order.ID, model.OrderStatusPaid, time.Time{}, "")
	require.NoError(t, err)
	_, err = f.orders.Transition(ctx, order.ID, model.OrderStatusShipped, time.Time{}, "")
	require.NoError(t, err)

	_, err = f.orders.CancelAndRestock(ctx, order.ID, time.Time{}, "late refund")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 3, testutil.Stock(t, f.store, p.ID))
	assert.Equal(t, model.OrderStatusShipped, f.reload(t, order.ID).Status)
}

func TestCancelAndRestock_RollsBackWhenRestockFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	b := testutil.SeedProduct(t, f.store, "B", "10.00", 5)
	order := f.placeOrder(t, "u1", line{a, 1}, line{b, 1})

	// 商品被删除，归还失败
	require.NoError(t, f.store.DB().Delete(&model.Product{}, "id = ?", b.ID).Error)

	_, err := f.orders.CancelAndRestock(ctx, order.ID, time.Time{}, "test")
	require.Error(t, err)
	assert.Equal(t, model.OrderStatusCreated, f.reload(t, order.ID).Status)
	assert.Equal(t, 4, testutil.Stock(t, f.store, a.ID))
}

func TestCancelAndRestock_ConcurrentRestocksOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 3})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.orders.CancelAndRestock(ctx, order.ID, time.Time{}, "race")
			if err == nil && res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, 5, testutil.Stock(t, f.store, p.ID))
}

func TestListAll_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.orders.ListAll(context.Background(), repositoryFilter("BOGUS"))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func repositoryFilter(status string) repository.OrderFilter {
	return repository.OrderFilter{Status: model.OrderStatus(status)}
}
