package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/hash"
	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
	"github.com/mverih/tezga/internal/mykafka"
	"github.com/mverih/tezga/internal/util"
)

const adminUserPageSize = 10

type AdminHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type userWithCounts struct {
	models.User
	ProductsCount       int64 `json:"products_count"`
	OrdersAsBuyerCount  int64 `json:"orders_as_buyer_count"`
	OrdersAsSellerCount int64 `json:"orders_as_seller_count"`
}

const userCountSelect = "users.*, " +
	"(SELECT count(*) FROM products WHERE products.user_id = users.id) AS products_count, " +
	"(SELECT count(*) FROM orders WHERE orders.buyer_id = users.id) AS orders_as_buyer_count, " +
	"(SELECT count(*) FROM orders WHERE orders.seller_id = users.id) AS orders_as_seller_count"

func (h *AdminHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *AdminHandler) GetUsers(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.users")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, adminUserPageSize)

	var total int64
	if err := h.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}

	var items []userWithCounts
	if err := h.DB.Model(&models.User{}).
		Select(userCountSelect).
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *AdminHandler) CreateUser(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.create_user")

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || len(req.Name) > 255 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "valid email is required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "password must be at least 8 characters")
	}
	if !models.Role(req.Role).Valid() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid role")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("create_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Phone:        req.Phone,
		Role:         models.Role(req.Role),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		l.Error("create_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":   "user_created",
		"userID": user.ID,
		"role":   user.Role,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user created",
		"user":    user,
	})
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.update_user")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "valid email is required")
		}
		var existing models.User
		if err := h.DB.Where("email = ? AND id <> ?", req.Email, user.ID).First(&existing).Error; err == nil {
			return echo.NewHTTPError(http.StatusConflict, "email is already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
		user.Email = req.Email
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Role != "" {
		if !models.Role(req.Role).Valid() {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid role")
		}
		user.Role = models.Role(req.Role)
	}

	if err := h.DB.Save(&user).Error; err != nil {
		l.Error("update_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "user updated",
		"user":    user,
	})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.delete_user")

	actingID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if user.ID == actingID {
		l.Warn("delete_user_failed", "status", 409, "reason", "self_delete", "userID", actingID)
		return echo.NewHTTPError(http.StatusConflict, "you cannot delete your own account")
	}

	if err := h.DB.Delete(&user).Error; err != nil {
		l.Error("delete_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":   "user_deleted",
		"userID": actingID,
		"target": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

func (h *AdminHandler) AllProducts(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.products")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, orderPageSize)

	var total int64
	if err := h.DB.Model(&models.Product{}).Count(&total).Error; err != nil {
		l.Error("admin_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	var items []models.Product
	if err := h.DB.Preload("User").Preload("Categories").
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("admin_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *AdminHandler) AllOrders(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.orders")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	offset, limit := util.Calculate(page, orderPageSize)

	var total int64
	if err := h.DB.Model(&models.Order{}).Count(&total).Error; err != nil {
		l.Error("admin_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	var items []models.Order
	if err := h.DB.Preload("Buyer").Preload("Seller").Preload("Product").
		Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("admin_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *AdminHandler) Stats(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "admin.stats")

	var totalUsers, totalProducts, totalOrders int64
	var admins, moderators, users int64
	var activeProducts, pendingProducts int64

	queries := []*gorm.DB{
		h.DB.Model(&models.User{}).Count(&totalUsers),
		h.DB.Model(&models.Product{}).Count(&totalProducts),
		h.DB.Model(&models.Order{}).Count(&totalOrders),
		h.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins),
		h.DB.Model(&models.User{}).Where("role = ?", models.RoleModerator).Count(&moderators),
		h.DB.Model(&models.User{}).Where("role = ?", models.RoleUser).Count(&users),
		h.DB.Model(&models.Product{}).Where("status = ?", models.ProductActive).Count(&activeProducts),
		h.DB.Model(&models.Product{}).Where("status = ?", models.ProductPending).Count(&pendingProducts),
	}
	for _, q := range queries {
		if q.Error != nil {
			l.Error("admin_stats_failed", "status", 500, "error", q.Error)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_users":    totalUsers,
		"total_products": totalProducts,
		"total_orders":   totalOrders,
		"users_by_role": echo.Map{
			"admin":     admins,
			"moderator": moderators,
			"user":      users,
		},
		"active_products":  activeProducts,
		"pending_products": pendingProducts,
	})
}
