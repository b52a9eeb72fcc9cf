package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

// OutboxRepository 订单事件外发盒
type OutboxRepository interface {
	Add(ctx context.Context, entry *model.Outbox) error
	// Claim 认领一批待投递记录（含租约过期的 processing），需在事务内调用
	Claim(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]*model.Outbox, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	// MarkRetry 记录一次失败并在 retryAt 之前不再认领；attempts 达到 maxAttempts 后置为 failed
	MarkRetry(ctx context.Context, entry *model.Outbox, reason string, maxAttempts int, retryAt time.Time) error
	ListByAggregate(ctx context.Context, aggregateID string) ([]*model.Outbox, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Add(ctx context.Context, entry *model.Outbox) error {
	if entry.Status == "" {
		entry.Status = model.OutboxPending
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]*model.Outbox, error) {
	var batch []*model.Outbox
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("(status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (status = ? AND claimed_at < ?)",
			model.OutboxPending, now, model.OutboxProcessing, now.Add(-lease)).
		Order("created_at").
		Limit(limit).
		Find(&batch).Error
	if err != nil || len(batch) == 0 {
		return nil, err
	}

	ids := make([]string, 0, len(batch))
	for _, e := range batch {
		ids = append(ids, e.ID)
		e.Status = model.OutboxProcessing
		e.ClaimedAt = &now
	}
	err = r.db.WithContext(ctx).
		Model(&model.Outbox{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": model.OutboxProcessing, "claimed_at": now}).Error
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Outbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.OutboxDone, "processed_at": at, "last_error": ""}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, entry *model.Outbox, reason string, maxAttempts int, retryAt time.Time) error {
	// 状态在内存中由认领时的 attempts 算出，不依赖 SET 子句的求值顺序
	attempts := entry.Attempts + 1
	status := model.OutboxPending
	if attempts >= maxAttempts {
		status = model.OutboxFailed
	}
	res := r.db.WithContext(ctx).
		Model(&model.Outbox{}).
		Where("id = ? AND attempts = ?", entry.ID, entry.Attempts).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"last_error":      reason,
			"status":          status,
			"next_attempt_at": retryAt,
		})
	if res.Error != nil {
		return res.Error
	}
	// 行数为 0 说明租约过期后已被其他 worker 处理
	if res.RowsAffected > 0 {
		entry.Attempts = attempts
		entry.Status = status
		entry.LastError = reason
		entry.NextAttemptAt = &retryAt
	}
	return nil
}

func (r *outboxRepository) ListByAggregate(ctx context.Context, aggregateID string) ([]*model.Outbox, error) {
	var res []*model.Outbox
	err := r.db.WithContext(ctx).Where("aggregate_id = ?", aggregateID).Order("created_at").Find(&res).Error
	return res, err
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Outbox{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
