package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/testutil"
)

type fakeVerifier struct {
	status *gateway.PaymentStatus
	err    error
	calls  int
}

func (f *fakeVerifier) VerifyPaymentStatus(context.Context, string) (*gateway.PaymentStatus, error) {
	f.calls++
	return f.status, f.err
}

type denyThrottle struct{}

func (denyThrottle) Allow(context.Context, string) bool { return false }

func TestRefresh_VerifiedPaymentMarksPaid(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})
	verifier := &fakeVerifier{status: &gateway.PaymentStatus{Verified: true, Status: "COMPLETED"}}
	svc := NewPaymentService(f.orders, verifier, nil)

	res, err := svc.VerifyAndUpdateOrderPayment(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, model.OrderStatusPaid, res.Status)
	assert.Equal(t, model.OrderStatusPaid, f.reload(t, order.ID).Status)

	// 已支付后不再查询网关
	res, err = svc.VerifyAndUpdateOrderPayment(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, res.Status)
	assert.Equal(t, 1, verifier.calls)
}

func TestRefresh_Unverified(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	pending := &fakeVerifier{status: &gateway.PaymentStatus{Status: "PENDING"}}
	res, err := NewPaymentService(f.orders, pending, nil).VerifyAndUpdateOrderPayment(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, "PENDING", res.GatewayStatus)
	assert.Equal(t, model.OrderStatusCreated, res.Status)

	broken := &fakeVerifier{err: errors.New("timeout")}
	res, err = NewPaymentService(f.orders, broken, nil).VerifyAndUpdateOrderPayment(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, model.OrderStatusCreated, res.Status)
}

func TestRefresh_Throttled(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})
	verifier := &fakeVerifier{status: &gateway.PaymentStatus{Verified: true}}

	res, err := NewPaymentService(f.orders, verifier, denyThrottle{}).VerifyAndUpdateOrderPayment(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.True(t, res.Throttled)
	assert.Zero(t, verifier.calls)
}

func TestRefresh_OtherUsersOrder(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.store, "A", "10.00", 5)
	order := f.placeOrder(t, "u1", line{p, 1})

	_, err := NewPaymentService(f.orders, &fakeVerifier{}, nil).VerifyAndUpdateOrderPayment(context.Background(), "u2", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
