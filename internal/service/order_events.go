package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
)

// 订单事件类型，同时作为消息的 routing key
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
)

func eventTypeFor(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusPaid:
		return EventOrderPaid
	case model.OrderStatusShipped:
		return EventOrderShipped
	case model.OrderStatusDelivered:
		return EventOrderDelivered
	case model.OrderStatusCancelled:
		return EventOrderCancelled
	}
	return EventOrderCreated
}

// emitOrderEvent 在调用方事务内写入 outbox
func emitOrderEvent(ctx context.Context, tx *repository.Store, order *model.Order, eventType, reason string, at time.Time) error {
	payload, err := json.Marshal(model.OrderEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Type:     eventType,
		Status:   order.Status,
		Total:    order.TotalAmount,
		Reason:   reason,
		Occurred: at,
	})
	if err != nil {
		return err
	}
	return tx.Outbox.Add(ctx, &model.Outbox{
		ID:          uuid.New().String(),
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     string(payload),
		Status:      model.OutboxPending,
		CreatedAt:   time.Now().UTC(),
	})
}
