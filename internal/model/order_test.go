package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusCreated, OrderStatusPaid, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusCreated, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_HasReached(t *testing.T) {
	assert.True(t, OrderStatusPaid.HasReached(OrderStatusPaid))
	assert.True(t, OrderStatusDelivered.HasReached(OrderStatusPaid))
	assert.False(t, OrderStatusCreated.HasReached(OrderStatusPaid))
	assert.False(t, OrderStatusCancelled.HasReached(OrderStatusPaid))
	assert.True(t, OrderStatusCancelled.HasReached(OrderStatusCancelled))
	assert.False(t, OrderStatusPaid.HasReached(OrderStatusCancelled))
}

func TestOrder_PreviousStamp(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	paid := created.Add(time.Hour)
	o := &Order{CreatedAt: created, PaidAt: &paid}

	assert.Equal(t, created, o.PreviousStamp(OrderStatusPaid))
	assert.Equal(t, paid, o.PreviousStamp(OrderStatusShipped))
	// 未发货时回退到创建时间
	assert.Equal(t, created, o.PreviousStamp(OrderStatusDelivered))
}

func TestOrderItem_Subtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, Price: decimal.RequireFromString("19.99")}
	assert.True(t, decimal.RequireFromString("59.97").Equal(item.Subtotal()))
}
