// Package testutil 测试用的数据库与种子数据
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/KIRA-Technologies/swagchain/internal/model"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
)

// NewDB 在临时目录创建已迁移的 sqlite 数据库
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))
	return db
}

// NewStore NewDB 的仓储集合版本
func NewStore(t testing.TB) *repository.Store {
	return repository.NewStore(NewDB(t))
}

// SeedProduct 插入一个商品
func SeedProduct(t testing.TB, store *repository.Store, name, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Category: "apparel",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	require.NoError(t, store.Products.Create(context.Background(), p))
	return p
}

// AddToCart 往用户购物车放入商品
func AddToCart(t testing.TB, store *repository.Store, userID, productID string, qty int) {
	t.Helper()
	require.NoError(t, store.Carts.Upsert(context.Background(), userID, productID, qty))
}

// Stock 读取商品当前库存
func Stock(t testing.TB, store *repository.Store, productID string) int {
	t.Helper()
	p, err := store.Products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
