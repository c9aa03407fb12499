package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
	"github.com/mverih/tezga/internal/mykafka"
	"github.com/mverih/tezga/internal/util"
)

type CategoryHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

type categoryWithCount struct {
	models.Category
	ProductsCount int64 `json:"products_count"`
}

const categoryCountSelect = "categories.*, " +
	"(SELECT count(*) FROM category_product WHERE category_product.category_id = categories.id) AS products_count"

func (h *CategoryHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *CategoryHandler) GetCategories(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "category.list")

	var items []categoryWithCount
	if err := h.DB.Model(&models.Category{}).
		Select(categoryCountSelect).
		Order("name ASC").
		Find(&items).Error; err != nil {
		l.Error("list_categories_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list categories")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CategoryHandler) GetCategory(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var item categoryWithCount
	if err := h.DB.Model(&models.Category{}).
		Select(categoryCountSelect).
		Where("categories.id = ?", id).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, item)
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "category.create")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	role := auth.UserRole(c)
	if role != models.RoleAdmin && role != models.RoleModerator {
		return echo.NewHTTPError(http.StatusForbidden, "only admin and moderator can manage categories")
	}

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || len(req.Name) > 255 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}

	var existing models.Category
	if err := h.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "category already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("create_category_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	cat := models.Category{
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Description: req.Description,
	}
	if err := h.DB.Create(&cat).Error; err != nil {
		l.Error("create_category_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":       "category_created",
		"userID":     userID,
		"categoryID": cat.ID,
		"slug":       cat.Slug,
	})

	return c.JSON(http.StatusCreated, cat)
}

func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "category.update")

	role := auth.UserRole(c)
	if role != models.RoleAdmin && role != models.RoleModerator {
		return echo.NewHTTPError(http.StatusForbidden, "only admin and moderator can manage categories")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var cat models.Category
	if err := h.DB.First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || len(req.Name) > 255 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}

	var existing models.Category
	if err := h.DB.Where("name = ? AND id <> ?", req.Name, cat.ID).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "category already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("update_category_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	cat.Name = req.Name
	cat.Slug = slug.Make(req.Name)
	cat.Description = req.Description
	if err := h.DB.Save(&cat).Error; err != nil {
		l.Error("update_category_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, cat)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "category.delete")

	if auth.UserRole(c) != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only admin can delete categories")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var cat models.Category
	if err := h.DB.First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cat).Association("Products").Clear(); err != nil {
			return err
		}
		return tx.Delete(&cat).Error
	})
	if txErr != nil {
		l.Error("delete_category_failed", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "category deleted"})
}

// GetCategoryProducts lists a category's products with the same filters as
// the main product listing.
func (h *CategoryHandler) GetCategoryProducts(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "category.products")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var cat models.Category
	if err := h.DB.First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "category not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Product{}).
		Joins("JOIN category_product ON category_product.product_id = products.id").
		Where("category_product.category_id = ?", cat.ID)
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("products.status = ?", status)
	}
	if min := c.QueryParam("min_price"); min != "" {
		q = q.Where("products.price >= ?", min)
	}
	if max := c.QueryParam("max_price"); max != "" {
		q = q.Where("products.price <= ?", max)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("category_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	var items []models.Product
	if err := q.Preload("User").Preload("Categories").
		Order(sortClause(c, productSortColumns)).
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("category_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}
