package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

const maxCASAttempts = 3

// TransitionResult 一次状态迁移的结果；Applied 为 false 表示目标状态早已达到
type TransitionResult struct {
	Order     *model.Order
	From      model.OrderStatus
	Applied   bool
	Restocked bool
}

// OrderService 订单状态机，所有状态变更都经过这里
type OrderService struct {
	store *repository.Store
	now   func() time.Time
}

func NewOrderService(store *repository.Store) *OrderService {
	return &OrderService{store: store, now: time.Now}
}

// Transition 把订单迁移到 target；at 为事件时间，零值表示使用当前时间
func (s *OrderService) Transition(ctx context.Context, orderID string, target model.OrderStatus, at time.Time, reason string) (*TransitionResult, error) {
	var res *TransitionResult
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		res, err = s.TransitionTx(ctx, tx, orderID, target, at, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observe(res)
	return res, nil
}

// CancelAndRestock 取消订单并按订单行归还库存，两者在同一事务中完成
func (s *OrderService) CancelAndRestock(ctx context.Context, orderID string, at time.Time, reason string) (*TransitionResult, error) {
	var res *TransitionResult
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		res, err = s.CancelAndRestockTx(ctx, tx, orderID, at, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observe(res)
	return res, nil
}

// TransitionTx 在调用方事务内执行迁移
func (s *OrderService) TransitionTx(ctx context.Context, tx *repository.Store, orderID string, target model.OrderStatus, at time.Time, reason string) (*TransitionResult, error) {
	if !target.Valid() {
		return nil, &InvalidTransitionError{To: target}
	}
	if target == model.OrderStatusCancelled {
		return s.CancelAndRestockTx(ctx, tx, orderID, at, reason)
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		order, err := s.load(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status.HasReached(target) {
			return &TransitionResult{Order: order, From: order.Status}, nil
		}
		if !order.Status.CanTransitionTo(target) {
			return nil, &InvalidTransitionError{From: order.Status, To: target}
		}

		from := order.Status
		stamp := s.effectiveTime(order, target, at)
		ok, err := tx.Orders.CompareAndSetStatus(ctx, order.ID, from, target, stamp)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		applyStatus(order, target, stamp)
		if err := emitOrderEvent(ctx, tx, order, eventTypeFor(target), reason, stamp); err != nil {
			return nil, err
		}
		return &TransitionResult{Order: order, From: from, Applied: true}, nil
	}
	return nil, ErrConcurrentUpdate
}

// CancelAndRestockTx 在调用方事务内取消并归还库存；已取消的订单不会重复归还
func (s *OrderService) CancelAndRestockTx(ctx context.Context, tx *repository.Store, orderID string, at time.Time, reason string) (*TransitionResult, error) {
	target := model.OrderStatusCancelled

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		order, err := s.load(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == target {
			return &TransitionResult{Order: order, From: order.Status}, nil
		}
		if !order.Status.CanTransitionTo(target) {
			return nil, &InvalidTransitionError{From: order.Status, To: target}
		}

		from := order.Status
		stamp := s.effectiveTime(order, target, at)
		ok, err := tx.Orders.CompareAndSetStatus(ctx, order.ID, from, target, stamp)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		// 状态已由本事务占有，归还失败会整体回滚
		for _, item := range order.Items {
			if err := tx.Products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}

		applyStatus(order, target, stamp)
		if err := emitOrderEvent(ctx, tx, order, EventOrderCancelled, reason, stamp); err != nil {
			return nil, err
		}
		return &TransitionResult{Order: order, From: from, Applied: true, Restocked: len(order.Items) > 0}, nil
	}
	return nil, ErrConcurrentUpdate
}

// UpdateStatus 后台履约操作
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, target model.OrderStatus) (*TransitionResult, error) {
	res, err := s.Transition(ctx, orderID, target, time.Time{}, "admin update")
	metrics.RecordOrderOperation("update_status", err == nil)
	if err != nil {
		logger.Warn("admin status update failed",
			zap.String("order_id", orderID), zap.String("target", string(target)), zap.Error(err))
	}
	return res, err
}

// GetForUser 查询用户自己的订单
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID string) (*model.Order, error) {
	order, err := s.store.Orders.GetByIDForUser(ctx, orderID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) ListForUser(ctx context.Context, userID string, limit int) ([]*model.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.Orders.ListByUser(ctx, userID, limit)
}

// ListAll 后台订单列表
func (s *OrderService) ListAll(ctx context.Context, f repository.OrderFilter) ([]*model.Order, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, validationErrorf("unknown status %q", f.Status)
	}
	return s.store.Orders.List(ctx, f)
}

func (s *OrderService) load(ctx context.Context, tx *repository.Store, orderID string) (*model.Order, error) {
	order, err := tx.Orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// effectiveTime 优先使用事件时间，并保证不早于上一阶段的时间
func (s *OrderService) effectiveTime(order *model.Order, target model.OrderStatus, at time.Time) time.Time {
	if at.IsZero() {
		at = s.now()
	}
	if prev := order.PreviousStamp(target); at.Before(prev) {
		at = prev
	}
	return at.UTC()
}

func (s *OrderService) observe(res *TransitionResult) {
	if res == nil || !res.Applied {
		return
	}
	metrics.RecordTransition(string(res.From), string(res.Order.Status))
	logger.Info("order status changed",
		zap.String("order_id", res.Order.ID),
		zap.String("from", string(res.From)),
		zap.String("to", string(res.Order.Status)),
		zap.Bool("restocked", res.Restocked))
}

func applyStatus(order *model.Order, status model.OrderStatus, at time.Time) {
	order.Status = status
	t := at
	switch status {
	case model.OrderStatusPaid:
		order.PaidAt = &t
	case model.OrderStatusShipped:
		order.ShippedAt = &t
	case model.OrderStatusDelivered:
		order.DeliveredAt = &t
	case model.OrderStatusCancelled:
		order.CancelledAt = &t
	}
}
