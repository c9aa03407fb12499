package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
	"github.com/mverih/tezga/internal/mykafka"
	"github.com/mverih/tezga/internal/service/search"
	"github.com/mverih/tezga/internal/util"
)

type ModeratorHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

func (h *ModeratorHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *ModeratorHandler) listByStatus(c echo.Context, status models.ProductStatus) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "moderator.list_products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, orderPageSize)

	q := h.DB.Model(&models.Product{}).Where("status = ?", status).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	var items []models.Product
	if err := q.Preload("User").Preload("Categories").
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *ModeratorHandler) PendingProducts(c echo.Context) error {
	return h.listByStatus(c, models.ProductPending)
}

func (h *ModeratorHandler) RejectedProducts(c echo.Context) error {
	return h.listByStatus(c, models.ProductRejected)
}

func (h *ModeratorHandler) loadProduct(c echo.Context) (*models.Product, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}
	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &prod, nil
}

func (h *ModeratorHandler) reindex(c echo.Context, id uint) {
	if h.ES == nil {
		return
	}
	var prod models.Product
	if err := h.DB.Preload("Categories").First(&prod, id).Error; err != nil {
		return
	}
	if err := search.IndexProduct(c.Request().Context(), h.ES, h.ESIndex, prod); err != nil {
		logging.FromContext(c.Request().Context()).Error("es_index_error", "error", err, "productID", id)
	}
}

func (h *ModeratorHandler) ApproveProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "moderator.approve")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	prod, err := h.loadProduct(c)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":           models.ProductActive,
		"rejection_reason": "",
	}
	if err := h.DB.Model(prod).Updates(updates).Error; err != nil {
		l.Error("approve_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.reindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":      "product_approved",
		"userID":    userID,
		"productID": prod.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "product approved",
		"product": prod,
	})
}

func (h *ModeratorHandler) RejectProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "moderator.reject")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Reason == "" || len(req.Reason) > 500 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "reason is required and must be at most 500 characters")
	}

	prod, err := h.loadProduct(c)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":           models.ProductRejected,
		"rejection_reason": req.Reason,
	}
	if err := h.DB.Model(prod).Updates(updates).Error; err != nil {
		l.Error("reject_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.reindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":      "product_rejected",
		"userID":    userID,
		"productID": prod.ID,
		"reason":    req.Reason,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "product rejected",
		"product": prod,
	})
}

// GetUsers lists ordinary users only; moderators never see other staff.
func (h *ModeratorHandler) GetUsers(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "moderator.users")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, adminUserPageSize)

	q := h.DB.Model(&models.User{}).Where("role = ?", models.RoleUser).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}

	var items []userWithCounts
	if err := q.Select(userCountSelect).
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *ModeratorHandler) Stats(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "moderator.stats")

	startOfDay := time.Now().Truncate(24 * time.Hour)

	var pending, rejected, approvedToday, totalUsers int64
	queries := []*gorm.DB{
		h.DB.Model(&models.Product{}).Where("status = ?", models.ProductPending).Count(&pending),
		h.DB.Model(&models.Product{}).Where("status = ?", models.ProductRejected).Count(&rejected),
		h.DB.Model(&models.Product{}).
			Where("status = ? AND updated_at >= ?", models.ProductActive, startOfDay).
			Count(&approvedToday),
		h.DB.Model(&models.User{}).Where("role = ?", models.RoleUser).Count(&totalUsers),
	}
	for _, q := range queries {
		if q.Error != nil {
			l.Error("moderator_stats_failed", "status", 500, "error", q.Error)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"pending_products":  pending,
		"rejected_products": rejected,
		"approved_today":    approvedToday,
		"total_users":       totalUsers,
	})
}
