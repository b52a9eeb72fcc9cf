package repository

import (
	"context"
	"time"

	"github.com/KIRA-Technologies/swagchain/internal/model"
)

// OrderFilter 后台订单列表过滤条件
type OrderFilter struct {
	Status model.OrderStatus
	UserID string
	Offset int
	Limit  int
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单及其订单行
	Create(ctx context.Context, order *model.Order) error

	// GetByID 根据订单ID查询订单（含订单行）
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// GetByIDForUser 仅返回属于 userID 的订单
	GetByIDForUser(ctx context.Context, id, userID string) (*model.Order, error)

	// GetByGatewayLinkID 根据网关支付链接ID查询订单
	GetByGatewayLinkID(ctx context.Context, linkID string) (*model.Order, error)

	// ListByUser 用户订单列表，按创建时间倒序
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Order, error)

	// List 后台订单列表
	List(ctx context.Context, f OrderFilter) ([]*model.Order, int64, error)

	// SetPaymentLink 写入网关链接ID与URL
	SetPaymentLink(ctx context.Context, id, linkID, url string) error

	// CompareAndSetStatus 仅当当前状态为 from 时改为 to，并写入对应时间列；
	// 返回是否命中
	CompareAndSetStatus(ctx context.Context, id string, from, to model.OrderStatus, at time.Time) (bool, error)

	// Delete 删除订单及订单行
	Delete(ctx context.Context, id string) error

	// Count 统计订单数量
	Count(ctx context.Context) (int64, error)
}
