package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// StatusVerifier 网关主动查询
type StatusVerifier interface {
	VerifyPaymentStatus(ctx context.Context, linkID string) (*gateway.PaymentStatus, error)
}

// Throttle 限制对同一订单的查询频率
type Throttle interface {
	Allow(ctx context.Context, key string) bool
}

// RefreshResult 主动对账结果
type RefreshResult struct {
	OrderID       string            `json:"orderId"`
	Status        model.OrderStatus `json:"status"`
	Verified      bool              `json:"verified"`
	Throttled     bool              `json:"throttled,omitempty"`
	GatewayStatus string            `json:"gatewayStatus,omitempty"`
}

// PaymentService 回调延迟时由用户触发的支付状态刷新
type PaymentService struct {
	orders   *OrderService
	verifier StatusVerifier
	throttle Throttle
}

// NewPaymentService throttle 可以为 nil
func NewPaymentService(orders *OrderService, verifier StatusVerifier, throttle Throttle) *PaymentService {
	return &PaymentService{orders: orders, verifier: verifier, throttle: throttle}
}

// VerifyAndUpdateOrderPayment 查询网关，已支付则与回调一样迁移到 PAID
func (s *PaymentService) VerifyAndUpdateOrderPayment(ctx context.Context, userID, orderID string) (*RefreshResult, error) {
	order, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	res := &RefreshResult{OrderID: order.ID, Status: order.Status}
	if order.Status != model.OrderStatusCreated || order.GatewayLinkID == nil {
		return res, nil
	}

	if s.throttle != nil && !s.throttle.Allow(ctx, "verify:"+order.ID) {
		res.Throttled = true
		return res, nil
	}

	st, err := s.verifier.VerifyPaymentStatus(ctx, *order.GatewayLinkID)
	metrics.RecordOrderOperation("verify_payment", err == nil)
	if err != nil {
		logger.Warn("payment status check failed", zap.String("order_id", order.ID), zap.Error(err))
		return res, nil
	}
	res.GatewayStatus = st.Status
	if !st.Verified {
		return res, nil
	}

	tr, err := s.orders.Transition(ctx, order.ID, model.OrderStatusPaid, time.Time{}, "payment verified")
	var invalid *InvalidTransitionError
	if errors.As(err, &invalid) {
		// 查询期间订单已被取消
		logger.Warn("verified payment for non-payable order",
			zap.String("order_id", order.ID), zap.String("status", string(invalid.From)))
		res.Status = invalid.From
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.Verified = true
	res.Status = tr.Order.Status
	return res, nil
}
