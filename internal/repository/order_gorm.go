package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

// GormOrderRepository 基于 gorm 的订单仓储实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") })
}

// Create 创建订单
func (r *GormOrderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 根据订单ID查询订单
func (r *GormOrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := preloadItems(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *GormOrderRepository) GetByIDForUser(ctx context.Context, id, userID string) (*model.Order, error) {
	var order model.Order
	err := preloadItems(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *GormOrderRepository) GetByGatewayLinkID(ctx context.Context, linkID string) (*model.Order, error) {
	var order model.Order
	err := preloadItems(r.db.WithContext(ctx)).Where("gateway_link_id = ?", linkID).First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ListByUser 根据用户ID查询订单列表
func (r *GormOrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := preloadItems(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormOrderRepository) List(ctx context.Context, f OrderFilter) ([]*model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var orders []*model.Order
	err := preloadItems(q).Order("created_at DESC").Offset(f.Offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

func (r *GormOrderRepository) SetPaymentLink(ctx context.Context, id, linkID, url string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"gateway_link_id": linkID, "gateway_url": url})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndSetStatus 更新订单状态
func (r *GormOrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": string(to)}
	if col := model.StampColumn(to); col != "" {
		updates[col] = at
	}
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Order{}).Error
}

// Count 统计订单数量
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}
