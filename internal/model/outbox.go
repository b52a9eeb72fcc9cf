package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outbox 状态
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
	OutboxFailed     = "failed"
)

// Outbox 订单事件外发盒，与状态变更同事务写入
type Outbox struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	AggregateID string     `gorm:"type:varchar(36);index:idx_outbox_aggregate"`
	EventType   string     `gorm:"type:varchar(64);not null"`
	Payload     string     `gorm:"type:text;not null"`
	Status      string     `gorm:"type:varchar(16);index:idx_outbox_status_created"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"index:idx_outbox_status_created"`
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
	// NextAttemptAt 退避截止时间，之前不会被认领
	NextAttemptAt *time.Time
}

func (Outbox) TableName() string { return "outbox" }

// OrderEvent 投递到消息队列的订单事件
type OrderEvent struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Type     string          `json:"type"`
	Status   OrderStatus     `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Reason   string          `json:"reason,omitempty"`
	Occurred time.Time       `json:"occurred"`
}
