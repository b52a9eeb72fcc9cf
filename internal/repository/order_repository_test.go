package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

func newOrder(userID, productID string) *model.Order {
	return &model.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		AddressID:   uuid.New().String(),
		Status:      model.OrderStatusCreated,
		TotalAmount: decimal.RequireFromString("20.00"),
		Items: []model.OrderItem{
			{ProductID: productID, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	}
}

func TestOrderCreateAndGet(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)

	o := newOrder("u1", p.ID)
	require.NoError(t, store.Orders.Create(ctx, o))

	got, err := store.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCreated, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	_, err = store.Orders.GetByIDForUser(ctx, o.ID, "someone-else")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderSetPaymentLinkAndLookup(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)
	o := newOrder("u1", p.ID)
	require.NoError(t, store.Orders.Create(ctx, o))

	require.NoError(t, store.Orders.SetPaymentLink(ctx, o.ID, "L1", "https://pay.example/L1"))

	got, err := store.Orders.GetByGatewayLinkID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	require.NotNil(t, got.GatewayURL)
	assert.Equal(t, "https://pay.example/L1", *got.GatewayURL)

	assert.ErrorIs(t, store.Orders.SetPaymentLink(ctx, "missing", "L2", "u"), repository.ErrNotFound)
}

func TestOrderCompareAndSetStatus(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)
	o := newOrder("u1", p.ID)
	require.NoError(t, store.Orders.Create(ctx, o))

	paidAt := time.Now().UTC().Truncate(time.Second)
	ok, err := store.Orders.CompareAndSetStatus(ctx, o.ID, model.OrderStatusCreated, model.OrderStatusPaid, paidAt)
	require.NoError(t, err)
	assert.True(t, ok)

	// 前置状态已不是 CREATED
	ok, err = store.Orders.CompareAndSetStatus(ctx, o.ID, model.OrderStatusCreated, model.OrderStatusCancelled, paidAt)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	assert.Nil(t, got.CancelledAt)
}

func TestOrderDelete(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)
	o := newOrder("u1", p.ID)
	require.NoError(t, store.Orders.Create(ctx, o))

	require.NoError(t, store.Orders.Delete(ctx, o.ID))
	_, err := store.Orders.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var items int64
	require.NoError(t, store.DB().Model(&model.OrderItem{}).Where("order_id = ?", o.ID).Count(&items).Error)
	assert.Zero(t, items)
}

func TestOrderList(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Orders.Create(ctx, newOrder("u1", p.ID)))
	}
	paid := newOrder("u2", p.ID)
	paid.Status = model.OrderStatusPaid
	require.NoError(t, store.Orders.Create(ctx, paid))

	mine, err := store.Orders.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	list, total, err := store.Orders.List(ctx, repository.OrderFilter{Status: model.OrderStatusPaid})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, paid.ID, list[0].ID)

	n, err := store.Orders.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestWithTx_RollsBack(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, store, "hoodie", "10.00", 5)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx *repository.Store) error {
		require.NoError(t, tx.Products.ReserveStock(ctx, p.ID, 3))
		require.NoError(t, tx.Orders.Create(ctx, newOrder("u1", p.ID)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, testutil.Stock(t, store, p.ID))

	n, err := store.Orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
