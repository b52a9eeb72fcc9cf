package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/metrics"
	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// EventPublisher 订单事件投递目标
type EventPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// OutboxRelay 从 outbox 拉取订单事件并投递到消息队列
type OutboxRelay struct {
	store        *repository.Store
	pub          EventPublisher
	workers      int
	claimLimit   int
	pollInterval time.Duration
	lease        time.Duration
	maxAttempts  int
	retryBase    time.Duration
	retryMax     time.Duration
	now          func() time.Time
}

func NewOutboxRelay(store *repository.Store, pub EventPublisher, cfg config.OutboxConfig) *OutboxRelay {
	r := &OutboxRelay{
		store:        store,
		pub:          pub,
		workers:      cfg.Workers,
		claimLimit:   cfg.ClaimLimit,
		pollInterval: cfg.PollInterval,
		lease:        cfg.Lease,
		maxAttempts:  cfg.MaxAttempts,
		retryBase:    cfg.RetryBase,
		retryMax:     cfg.RetryMax,
		now:          time.Now,
	}
	if r.workers <= 0 {
		r.workers = 2
	}
	if r.claimLimit <= 0 {
		r.claimLimit = 64
	}
	if r.pollInterval <= 0 {
		r.pollInterval = 500 * time.Millisecond
	}
	if r.lease <= 0 {
		r.lease = 2 * time.Minute
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 12
	}
	if r.retryBase <= 0 {
		r.retryBase = time.Second
	}
	if r.retryMax <= 0 {
		r.retryMax = 5 * time.Minute
	}
	if r.retryMax < r.retryBase {
		r.retryMax = r.retryBase
	}
	return r
}

// Start 启动若干 worker 轮询处理 outbox；返回停止函数。
func (r *OutboxRelay) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(stop)
		}()
	}
	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *OutboxRelay) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// 超过租约的行会被其他 worker 重新认领
			ctx, cancel := context.WithTimeout(context.Background(), r.lease)
			if _, err := r.ProcessOnce(ctx); err != nil {
				logger.Warn("outbox relay iteration failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// ProcessOnce 认领一批事件并逐条投递，返回成功投递的条数
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	var batch []*model.Outbox
	err := r.store.WithTx(ctx, func(tx *repository.Store) error {
		var err error
		batch, err = tx.Outbox.Claim(ctx, r.claimLimit, r.lease, r.now().UTC())
		return err
	})
	if err != nil || len(batch) == 0 {
		return 0, err
	}

	sent := 0
	for _, e := range batch {
		pubErr := r.pub.Publish(ctx, e.EventType, e.ID, []byte(e.Payload))
		metrics.RecordOutbox(pubErr == nil)
		if pubErr != nil {
			logger.Warn("publish order event failed",
				zap.String("outbox_id", e.ID), zap.String("type", e.EventType),
				zap.Int("attempts", e.Attempts+1), zap.Error(pubErr))
			retryAt := r.now().UTC().Add(r.backoff(e.Attempts))
			if err := r.store.Outbox.MarkRetry(ctx, e, pubErr.Error(), r.maxAttempts, retryAt); err != nil {
				return sent, err
			}
			continue
		}
		if err := r.store.Outbox.MarkDone(ctx, e.ID, r.now().UTC()); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// backoff 第 attempts 次失败后的等待时间：retryBase * 2^attempts，封顶 retryMax
func (r *OutboxRelay) backoff(attempts int) time.Duration {
	d := r.retryBase
	for i := 0; i < attempts && d < r.retryMax; i++ {
		d *= 2
	}
	if d > r.retryMax {
		return r.retryMax
	}
	return d
}
