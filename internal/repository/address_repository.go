package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

type AddressRepository interface {
	Create(ctx context.Context, a *model.Address) error
	Delete(ctx context.Context, id string) error
}

type addressRepository struct{ db *gorm.DB }

func NewAddressRepository(db *gorm.DB) AddressRepository { return &addressRepository{db: db} }

func (r *addressRepository) Create(ctx context.Context, a *model.Address) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *addressRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Address{}).Error
}
