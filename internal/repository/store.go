package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

// Store 绑定到同一个 *gorm.DB（连接池或事务）的仓储集合
type Store struct {
	db *gorm.DB

	Products      ProductRepository
	Carts         CartRepository
	Addresses     AddressRepository
	Orders        OrderRepository
	WebhookEvents WebhookEventRepository
	Outbox        OutboxRepository
}

// NewStore 创建仓储集合
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Products:      NewProductRepository(db),
		Carts:         NewCartRepository(db),
		Addresses:     NewAddressRepository(db),
		Orders:        NewOrderRepository(db),
		WebhookEvents: NewWebhookEventRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}

// DB 底层连接
func (s *Store) DB() *gorm.DB { return s.db }

// WithTx 在一个事务内执行 fn；fn 返回错误时整体回滚
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Migrate 初始化数据库表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}
