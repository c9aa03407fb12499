// Package lifecycle owns the order/product state transitions that must
// commit atomically: creating an order reserves the product, cancelling an
// order releases it.
package lifecycle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/models"
)

var (
	ErrSelfPurchase       = errors.New("cannot buy your own product")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrAlreadyCancelled   = errors.New("order is already cancelled")
)

type Manager struct {
	DB *gorm.DB
}

// CreateOrder inserts a pending order snapshotting the product's price and
// currency, and marks the product sold. Both writes commit together or not
// at all. The availability check is repeated inside the transaction so two
// racing buyers cannot both reserve the product.
func (m *Manager) CreateOrder(ctx context.Context, buyerID uint, productID uint, notes string) (*models.Order, error) {
	var product models.Product
	if err := m.DB.WithContext(ctx).First(&product, productID).Error; err != nil {
		return nil, err
	}
	if product.UserID == buyerID {
		return nil, ErrSelfPurchase
	}
	if product.Status != models.ProductActive {
		return nil, ErrProductUnavailable
	}

	order := models.Order{
		BuyerID:     buyerID,
		SellerID:    product.UserID,
		ProductID:   product.ID,
		TotalAmount: product.Price,
		Currency:    product.Currency,
		Status:      models.OrderPending,
		Notes:       notes,
	}

	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Product
		if err := tx.First(&current, product.ID).Error; err != nil {
			return err
		}
		if current.Status != models.ProductActive {
			return ErrProductUnavailable
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return tx.Model(&models.Product{}).
			Where("id = ?", current.ID).
			Update("status", models.ProductSold).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder sets the order cancelled and restores the product to active in
// one transaction. An already cancelled order is rejected, never reapplied.
func (m *Manager) CancelOrder(ctx context.Context, order *models.Order) error {
	if order.Status == models.OrderCancelled {
		return ErrAlreadyCancelled
	}
	err := m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Update("status", models.OrderCancelled).Error; err != nil {
			return err
		}
		return tx.Model(&models.Product{}).
			Where("id = ?", order.ProductID).
			Update("status", models.ProductActive).Error
	})
	if err != nil {
		return err
	}
	order.Status = models.OrderCancelled
	return nil
}
