package model

import "time"

// WebhookEvent 已处理的网关回调，(transaction_id, kind) 唯一用于去重
type WebhookEvent struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	TransactionID string    `gorm:"type:varchar(128);not null;index:ux_webhook_events_tx_kind,unique,priority:1"`
	Kind          string    `gorm:"type:varchar(32);not null;index:ux_webhook_events_tx_kind,unique,priority:2"`
	EventName     string    `gorm:"type:varchar(64);not null"`
	OrderID       string    `gorm:"type:varchar(36);index"`
	Outcome       string    `gorm:"type:varchar(32)"`
	Payload       string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
