package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*model.CartItem, error)
	Get(ctx context.Context, userID, productID string) (*model.CartItem, error)
	// Upsert 设置某商品在购物车中的数量
	Upsert(ctx context.Context, userID, productID string, quantity int) error
	Clear(ctx context.Context, userID string) error
}

type cartRepository struct{ db *gorm.DB }

func NewCartRepository(db *gorm.DB) CartRepository { return &cartRepository{db: db} }

func (r *cartRepository) ListByUser(ctx context.Context, userID string) ([]*model.CartItem, error) {
	var res []*model.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&res).Error
	return res, err
}

func (r *cartRepository) Get(ctx context.Context, userID, productID string) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *cartRepository) Upsert(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	item := &model.CartItem{ID: uuid.New().String(), UserID: userID, ProductID: productID, Quantity: quantity}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{}).Error
}
