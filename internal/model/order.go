package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 成功路径上的顺序，CANCELLED 不在其中
var successRank = map[OrderStatus]int{
	OrderStatusCreated:   0,
	OrderStatusPaid:      1,
	OrderStatusShipped:   2,
	OrderStatusDelivered: 3,
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// Valid 是否为已知状态
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := successRank[s]
	return ok
}

// Terminal DELIVERED 与 CANCELLED 不再迁移
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo 是否存在 s -> target 的直接边
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// HasReached 订单是否已处于 target 或其之后的状态
func (s OrderStatus) HasReached(target OrderStatus) bool {
	if target == OrderStatusCancelled || s == OrderStatusCancelled {
		return s == target
	}
	sr, ok1 := successRank[s]
	tr, ok2 := successRank[target]
	return ok1 && ok2 && sr >= tr
}

// Order 订单模型
type Order struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string          `json:"user_id" gorm:"type:varchar(64);index:idx_orders_user_created;not null"`
	AddressID     string          `json:"address_id" gorm:"type:varchar(36);not null"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(16);index;not null;default:CREATED"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	GatewayLinkID *string         `json:"gateway_link_id,omitempty" gorm:"type:varchar(128);uniqueIndex"`
	GatewayURL    *string         `json:"gateway_url,omitempty" gorm:"type:varchar(512)"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index:idx_orders_user_created;not null"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

// StampColumn 进入某状态时要写入的时间列
func StampColumn(status OrderStatus) string {
	switch status {
	case OrderStatusPaid:
		return "paid_at"
	case OrderStatusShipped:
		return "shipped_at"
	case OrderStatusDelivered:
		return "delivered_at"
	case OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

// PreviousStamp 成功路径上前一阶段的时间，用于保证时间单调
func (o *Order) PreviousStamp(target OrderStatus) time.Time {
	var prev *time.Time
	switch target {
	case OrderStatusPaid, OrderStatusCancelled:
		return o.CreatedAt
	case OrderStatusShipped:
		prev = o.PaidAt
	case OrderStatusDelivered:
		prev = o.ShippedAt
	}
	if prev == nil {
		return o.CreatedAt
	}
	return *prev
}

// OrderItem 订单行快照，创建后不可变
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);index;not null"`
	Quantity  int             `json:"quantity" gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// Subtotal 行小计
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
