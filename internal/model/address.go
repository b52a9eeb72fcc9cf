package model

import "time"

// Address 收货地址快照，每次下单新建一条
type Address struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	FullName   string    `json:"full_name" gorm:"type:varchar(255);not null"`
	Street     string    `json:"street" gorm:"type:varchar(255);not null"`
	City       string    `json:"city" gorm:"type:varchar(128);not null"`
	State      string    `json:"state" gorm:"type:varchar(128);not null"`
	PostalCode string    `json:"postal_code" gorm:"type:varchar(32);not null"`
	Country    string    `json:"country" gorm:"type:varchar(64);not null"`
	Phone      string    `json:"phone,omitempty" gorm:"type:varchar(32)"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Address) TableName() string { return "addresses" }
