package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductSold     ProductStatus = "sold"
	ProductInactive ProductStatus = "inactive"
	ProductPending  ProductStatus = "pending"
	ProductRejected ProductStatus = "rejected"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductSold, ProductInactive, ProductPending, ProductRejected:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `gorm:"not null;default:user"    json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Products       []Product `gorm:"foreignKey:UserID"   json:"products,omitempty"`
	OrdersAsBuyer  []Order   `gorm:"foreignKey:BuyerID"  json:"orders_as_buyer,omitempty"`
	OrdersAsSeller []Order   `gorm:"foreignKey:SellerID" json:"orders_as_seller,omitempty"`
}

type Product struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"      json:"id"`
	UserID          uint            `gorm:"index;not null"                json:"user_id"`
	Title           string          `gorm:"size:255;not null"             json:"title"`
	Description     string          `gorm:"type:text;not null"            json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null"   json:"price"`
	Currency        string          `gorm:"size:3;not null;default:RSD"   json:"currency"`
	ImagePath       string          `json:"image_path,omitempty"`
	Status          ProductStatus   `gorm:"index;not null;default:active" json:"status"`
	RejectionReason string          `gorm:"size:500"                      json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	User       *User      `gorm:"foreignKey:UserID"          json:"user,omitempty"`
	Categories []Category `gorm:"many2many:category_product" json:"categories,omitempty"`
}

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:255;unique;not null" json:"name"`
	Slug        string    `gorm:"size:255;unique;not null" json:"slug"`
	Description string    `gorm:"type:text"                json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Products []Product `gorm:"many2many:category_product" json:"products,omitempty"`
}

// Order snapshots total_amount and currency from the product at creation
// time, so later price edits never change historical orders.
type Order struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	BuyerID     uint            `gorm:"index;not null"              json:"buyer_id"`
	SellerID    uint            `gorm:"index;not null"              json:"seller_id"`
	ProductID   uint            `gorm:"index;not null"              json:"product_id"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency    string          `gorm:"size:3;not null"             json:"currency"`
	Status      OrderStatus     `gorm:"index;not null"              json:"status"`
	Notes       string          `gorm:"type:text"                   json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Buyer   *User    `gorm:"foreignKey:BuyerID"   json:"buyer,omitempty"`
	Seller  *User    `gorm:"foreignKey:SellerID"  json:"seller,omitempty"`
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type ApiToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}
