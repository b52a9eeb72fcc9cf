package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

var validAddress = ShippingAddress{
	FullName:   "Ada Lovelace",
	Street:     "12 Analytical Row",
	City:       "London",
	State:      "Greater London",
	PostalCode: "N1 9GU",
	Country:    "GB",
}

type fakeLinks struct {
	mu    sync.Mutex
	err   error
	calls []gateway.CreateLinkRequest
}

func (f *fakeLinks) CreatePaymentLink(_ context.Context, req gateway.CreateLinkRequest) (*gateway.PaymentLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("LINK-%d", len(f.calls))
	return &gateway.PaymentLink{ID: id, URL: "https://pay.example/" + id}, nil
}

type fixture struct {
	store    *repository.Store
	orders   *OrderService
	checkout *CheckoutService
	webhooks *WebhookService
	links    *fakeLinks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	orders := NewOrderService(store)
	links := &fakeLinks{}
	return &fixture{
		store:    store,
		orders:   orders,
		checkout: NewCheckoutService(store, links, "https://shop.example/"),
		webhooks: NewWebhookService(store, orders),
		links:    links,
	}
}

type line struct {
	product *model.Product
	qty     int
}

// placeOrder 走完整下单流程并返回落库后的订单
func (f *fixture) placeOrder(t *testing.T, userID string, lines ...line) *model.Order {
	t.Helper()
	for _, l := range lines {
		testutil.AddToCart(t, f.store, userID, l.product.ID, l.qty)
	}
	res, err := f.checkout.CreateOrder(context.Background(), userID, validAddress)
	require.NoError(t, err)

	order, err := f.store.Orders.GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	return order
}

func (f *fixture) reload(t *testing.T, orderID string) *model.Order {
	t.Helper()
	order, err := f.store.Orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (f *fixture) outboxTypes(t *testing.T, orderID string) []string {
	t.Helper()
	entries, err := f.store.Outbox.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.EventType)
	}
	return types
}
