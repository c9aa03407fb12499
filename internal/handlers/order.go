package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/lifecycle"
	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
	"github.com/mverih/tezga/internal/mykafka"
	"github.com/mverih/tezga/internal/util"
)

const orderPageSize = 15

type OrderHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	Lifecycle *lifecycle.Manager
}

var orderSortColumns = map[string]bool{
	"id": true, "status": true, "total_amount": true, "created_at": true,
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

// loadOrder fetches an order the requester participates in. Non-participants
// get 403 rather than 404 so a rejected request is distinguishable from a
// missing order.
func (h *OrderHandler) loadOrder(c echo.Context, userID uint) (*models.Order, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "you do not have access to this order")
	}
	return &order, nil
}

func (h *OrderHandler) withRelations(order *models.Order) error {
	return h.DB.Preload("Buyer").Preload("Seller").Preload("Product").
		First(order, order.ID).Error
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.list")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("per_page"), orderPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Order{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID)
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	var items []models.Order
	if err := q.Preload("Buyer").Preload("Seller").Preload("Product").
		Order(sortClause(c, orderSortColumns)).
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("list_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *OrderHandler) MyOrders(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.my_orders")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, orderPageSize)

	q := h.DB.Model(&models.Order{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("my_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	var items []models.Order
	if err := q.Preload("Buyer").Preload("Seller").Preload("Product").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("my_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.create")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint   `json:"product_id"`
		Notes     string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "product_id is required")
	}

	order, err := h.Lifecycle.CreateOrder(c.Request().Context(), userID, req.ProductID, req.Notes)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	case errors.Is(err, lifecycle.ErrSelfPurchase):
		l.Warn("create_order_failed", "status", 409, "reason", "self_purchase", "userID", userID)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrProductUnavailable):
		l.Warn("create_order_failed", "status", 409, "reason", "product_unavailable", "productID", req.ProductID)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		l.Error("create_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create order")
	}

	if err := h.withRelations(order); err != nil {
		l.Error("create_order_failed", "status", 500, "reason", "preload", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
	})

	l.Info("create_order_success", "orderID", order.ID)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	order, err := h.loadOrder(c, userID)
	if err != nil {
		return err
	}
	if err := h.withRelations(order); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateOrder lets the seller move the order through the status enumeration.
// Any enumerated value is accepted from any state; only the cancel route
// touches the product.
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.update")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if order.SellerID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "only the seller can update this order")
	}

	var req struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !models.OrderStatus(req.Status).Valid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid status")
	}

	order.Status = models.OrderStatus(req.Status)
	if req.Notes != "" {
		order.Notes = req.Notes
	}
	if err := h.DB.Save(&order).Error; err != nil {
		l.Error("update_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if err := h.withRelations(&order); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":    "order_updated",
		"userID":  userID,
		"orderID": order.ID,
		"status":  order.Status,
	})

	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.cancel")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	order, err := h.loadOrder(c, userID)
	if err != nil {
		return err
	}

	if err := h.Lifecycle.CancelOrder(c.Request().Context(), order); err != nil {
		if errors.Is(err, lifecycle.ErrAlreadyCancelled) {
			l.Warn("cancel_order_failed", "status", 409, "reason", "already_cancelled", "orderID", order.ID)
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		l.Error("cancel_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot cancel order")
	}

	h.publish(c, map[string]any{
		"type":    "order_cancelled",
		"userID":  userID,
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "order cancelled"})
}

func (h *OrderHandler) Statistics(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "order.statistics")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	participant := h.DB.Model(&models.Order{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID)

	var totalOrders, pendingOrders, completedOrders int64
	if err := participant.Session(&gorm.Session{}).Count(&totalOrders).Error; err != nil {
		l.Error("statistics_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := participant.Session(&gorm.Session{}).
		Where("status = ?", models.OrderPending).Count(&pendingOrders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := participant.Session(&gorm.Session{}).
		Where("status = ?", models.OrderDelivered).Count(&completedOrders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var totalSpent, totalEarned decimal.Decimal
	if err := h.DB.Model(&models.Order{}).
		Where("buyer_id = ?", userID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalSpent).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.Model(&models.Order{}).
		Where("seller_id = ?", userID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalEarned).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_orders":     totalOrders,
		"pending_orders":   pendingOrders,
		"completed_orders": completedOrders,
		"total_spent":      totalSpent,
		"total_earned":     totalEarned,
	})
}
