package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

// WebhookEventRepository 回调去重账本
type WebhookEventRepository interface {
	// Claim 插入账本行；(transaction_id, kind) 已存在时返回 false
	Claim(ctx context.Context, ev *model.WebhookEvent) (bool, error)
	SetOutcome(ctx context.Context, id, orderID, outcome string) error
	Get(ctx context.Context, transactionID, kind string) (*model.WebhookEvent, error)
	Count(ctx context.Context) (int64, error)
}

type webhookEventRepository struct{ db *gorm.DB }

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Claim(ctx context.Context, ev *model.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *webhookEventRepository) SetOutcome(ctx context.Context, id, orderID, outcome string) error {
	return r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"order_id": orderID, "outcome": outcome}).Error
}

func (r *webhookEventRepository) Get(ctx context.Context, transactionID, kind string) (*model.WebhookEvent, error) {
	var ev model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND kind = ?", transactionID, kind).
		First(&ev).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ev, nil
}

func (r *webhookEventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).Count(&n).Error
	return n, err
}
