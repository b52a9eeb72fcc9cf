package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/webhook"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// Outcome 一次回调投递的处理结果
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeNoop      Outcome = "noop"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

const maxStoredPayload = 16 << 10

// WebhookResult 回调处理结果；除 ErrOrderNotFound 与内部错误外都应回 200
type WebhookResult struct {
	Outcome Outcome
	OrderID string
	Status  model.OrderStatus
}

// WebhookService 把归一化后的回调事件应用到订单状态机
type WebhookService struct {
	store  *repository.Store
	orders *OrderService
	tracer trace.Tracer
}

func NewWebhookService(store *repository.Store, orders *OrderService) *WebhookService {
	return &WebhookService{
		store:  store,
		orders: orders,
		tracer: otel.Tracer("github.com/KIRA-Technologies/swagchain/internal/service"),
	}
}

// Handle 处理一个已通过签名校验的事件；body 为原始请求体
func (s *WebhookService) Handle(ctx context.Context, ev webhook.Event, body []byte) (*WebhookResult, error) {
	ctx, span := s.tracer.Start(ctx, "webhook.Handle", trace.WithAttributes(
		attribute.String("webhook.event", ev.Name),
		attribute.String("webhook.kind", string(ev.Kind)),
	))
	defer span.End()

	res, err := s.handle(ctx, ev, body)
	outcome := "error"
	if err == nil {
		outcome = string(res.Outcome)
	} else if errors.Is(err, ErrOrderNotFound) {
		outcome = "order_not_found"
	}
	metrics.RecordWebhook(string(ev.Kind), outcome)
	span.SetAttributes(attribute.String("webhook.outcome", outcome))
	return res, err
}

func (s *WebhookService) handle(ctx context.Context, ev webhook.Event, body []byte) (*WebhookResult, error) {
	if ev.Kind == webhook.KindUnrecognized {
		logger.Info("ignoring unrecognized webhook event", zap.String("event", ev.Name))
		return &WebhookResult{Outcome: OutcomeIgnored}, nil
	}

	order, err := s.resolveOrder(ctx, ev)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			logger.Error("webhook order not found",
				zap.String("event", ev.Name),
				zap.String("link_code", ev.LinkCode),
				zap.String("custom_order_id", ev.CustomOrderID))
		}
		return nil, err
	}

	if ev.Kind == webhook.KindCreated {
		logger.Info("payment transaction created",
			zap.String("order_id", order.ID), zap.String("transaction_id", ev.TransactionID))
		return &WebhookResult{Outcome: OutcomeIgnored, OrderID: order.ID, Status: order.Status}, nil
	}

	record := &model.WebhookEvent{
		ID:            uuid.New().String(),
		TransactionID: webhook.IdempotencyKey(ev, body),
		Kind:          string(ev.Kind),
		EventName:     ev.Name,
		OrderID:       order.ID,
		Payload:       truncate(string(body), maxStoredPayload),
	}

	var (
		result   = &WebhookResult{OrderID: order.ID}
		applied  *TransitionResult
		rejected *InvalidTransitionError
	)
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		claimed, err := tx.WebhookEvents.Claim(ctx, record)
		if err != nil {
			return fmt.Errorf("claim webhook event: %w", err)
		}
		if !claimed {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		applied, err = s.dispatch(ctx, tx, order.ID, ev)
		switch {
		case errors.As(err, &rejected):
			result.Outcome = OutcomeRejected
		case err != nil:
			return err
		case applied.Applied:
			result.Outcome = OutcomeApplied
			result.Status = applied.Order.Status
		default:
			result.Outcome = OutcomeNoop
			result.Status = applied.Order.Status
		}
		return tx.WebhookEvents.SetOutcome(ctx, record.ID, order.ID, string(result.Outcome))
	})
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case OutcomeDuplicate:
		logger.Info("duplicate webhook delivery",
			zap.String("order_id", order.ID), zap.String("transaction_id", record.TransactionID), zap.String("kind", record.Kind))
	case OutcomeRejected:
		// 例如取消后又收到支付成功，需要人工对账
		logger.Warn("webhook event conflicts with order state",
			zap.String("order_id", order.ID),
			zap.String("event", ev.Name),
			zap.String("from", string(rejected.From)),
			zap.String("to", string(rejected.To)))
		result.Status = rejected.From
	default:
		s.orders.observe(applied)
	}
	return result, nil
}

func (s *WebhookService) dispatch(ctx context.Context, tx *repository.Store, orderID string, ev webhook.Event) (*TransitionResult, error) {
	switch ev.Kind {
	case webhook.KindSucceeded:
		return s.orders.TransitionTx(ctx, tx, orderID, model.OrderStatusPaid, ev.OccurredAt, "payment succeeded")
	case webhook.KindFailed:
		return s.orders.CancelAndRestockTx(ctx, tx, orderID, ev.OccurredAt, "payment failed")
	case webhook.KindRefunded:
		return s.orders.CancelAndRestockTx(ctx, tx, orderID, ev.OccurredAt, "payment refunded")
	case webhook.KindExpired:
		return s.orders.CancelAndRestockTx(ctx, tx, orderID, ev.OccurredAt, "payment expired")
	}
	return nil, fmt.Errorf("unsupported webhook kind %q", ev.Kind)
}

// resolveOrder 先按支付链接ID查找，再按 customOrderId 回退
func (s *WebhookService) resolveOrder(ctx context.Context, ev webhook.Event) (*model.Order, error) {
	if ev.LinkCode != "" {
		order, err := s.store.Orders.GetByGatewayLinkID(ctx, ev.LinkCode)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	if ev.CustomOrderID != "" {
		order, err := s.store.Orders.GetByID(ctx, ev.CustomOrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrOrderNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
