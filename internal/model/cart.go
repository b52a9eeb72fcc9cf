package model

import "time"

// CartItem 购物车条目，(user_id, product_id) 唯一
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;index:ux_cart_user_product,unique"`
	ProductID string    `json:"product_id" gorm:"type:varchar(36);not null;index:ux_cart_user_product,unique"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product Product `json:"product" gorm:"foreignKey:ProductID"`
}

func (CartItem) TableName() string { return "cart_items" }
