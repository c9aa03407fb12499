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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/filestore"
	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/models"
	"github.com/mverih/tezga/internal/mykafka"
	"github.com/mverih/tezga/internal/service/search"
	"github.com/mverih/tezga/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Files    filestore.Store
	ES       *elasticsearch.Client
	ESIndex  string
}

var productSortColumns = map[string]bool{
	"id": true, "title": true, "price": true, "status": true, "created_at": true,
}

func sortClause(c echo.Context, allowed map[string]bool) string {
	sortBy := c.QueryParam("sort_by")
	if !allowed[sortBy] {
		sortBy = "created_at"
	}
	sortDir := c.QueryParam("sort_dir")
	if sortDir != "asc" {
		sortDir = "desc"
	}
	return sortBy + " " + sortDir
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}

func (h *ProductHandler) reindex(c echo.Context, id uint) {
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

func applyProductFilters(q *gorm.DB, c echo.Context) *gorm.DB {
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("products.status = ?", status)
	}
	if min := c.QueryParam("min_price"); min != "" {
		q = q.Where("products.price >= ?", min)
	}
	if max := c.QueryParam("max_price"); max != "" {
		q = q.Where("products.price <= ?", max)
	}
	if userID := c.QueryParam("user_id"); userID != "" {
		q = q.Where("products.user_id = ?", userID)
	}
	if catID := c.QueryParam("category_id"); catID != "" {
		q = q.Joins("JOIN category_product ON category_product.product_id = products.id").
			Where("category_product.category_id = ?", catID)
	}
	if s := c.QueryParam("search"); s != "" {
		like := "%" + s + "%"
		q = q.Where("products.title LIKE ? OR products.description LIKE ?", like, like)
	}
	return q
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.list")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := applyProductFilters(h.DB.Model(&models.Product{}), c).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count products")
	}

	var items []models.Product
	if err := q.Preload("User").Preload("Categories").
		Order(sortClause(c, productSortColumns)).
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("list_products_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var prod models.Product
	if err := h.DB.Preload("User").Preload("Categories").First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, prod)
}

type productRequest struct {
	Title       string           `json:"title"        form:"title"`
	Description string           `json:"description"  form:"description"`
	Price       *decimal.Decimal `json:"price"        form:"price"`
	Currency    string           `json:"currency"     form:"currency"`
	Status      string           `json:"status"       form:"status"`
	CategoryIDs []uint           `json:"category_ids" form:"category_ids"`
}

func (h *ProductHandler) loadCategories(ids []uint) ([]models.Category, error) {
	var cats []models.Category
	if len(ids) == 0 {
		return cats, nil
	}
	if err := h.DB.Where("id IN ?", ids).Find(&cats).Error; err != nil {
		return nil, err
	}
	if len(cats) != len(ids) {
		return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown category id")
	}
	return cats, nil
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.create")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	role := auth.UserRole(c)
	if role != models.RoleAdmin && role != models.RoleModerator {
		return echo.NewHTTPError(http.StatusForbidden, "only admin and moderator can add products")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Title == "" || len(req.Title) > 255 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "title is required")
	}
	if req.Description == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "description is required")
	}
	if req.Price == nil || req.Price.IsNegative() {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "price must be a non-negative number")
	}
	if len(req.Currency) != 3 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "currency must be a 3-letter code")
	}

	cats, err := h.loadCategories(req.CategoryIDs)
	if err != nil {
		return err
	}

	prod := models.Product{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		Currency:    req.Currency,
		Status:      models.ProductActive,
		Categories:  cats,
	}

	if file, err := c.FormFile("image"); err == nil {
		path, err := h.Files.Save(file)
		if err != nil {
			return imageError(err)
		}
		prod.ImagePath = path
	}

	if err := h.DB.Create(&prod).Error; err != nil {
		l.Error("create_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.reindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"userID":    userID,
		"productID": prod.ID,
		"title":     prod.Title,
	})

	l.Info("create_product_success", "productID", prod.ID)
	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.update")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	role := auth.UserRole(c)
	if prod.UserID != userID && role != models.RoleAdmin && role != models.RoleModerator {
		return echo.NewHTTPError(http.StatusForbidden, "you cannot edit this product")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.Title != "" {
		if len(req.Title) > 255 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "title is too long")
		}
		prod.Title = req.Title
	}
	if req.Description != "" {
		prod.Description = req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "price must be a non-negative number")
		}
		prod.Price = *req.Price
	}
	if req.Currency != "" {
		if len(req.Currency) != 3 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "currency must be a 3-letter code")
		}
		prod.Currency = req.Currency
	}
	if req.Status != "" {
		// Owners may only move between active/sold/inactive; the moderation
		// states are reached through the moderator routes.
		switch models.ProductStatus(req.Status) {
		case models.ProductActive, models.ProductSold, models.ProductInactive:
			prod.Status = models.ProductStatus(req.Status)
		default:
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid status")
		}
	}

	if file, err := c.FormFile("image"); err == nil {
		path, err := h.Files.Save(file)
		if err != nil {
			return imageError(err)
		}
		if prod.ImagePath != "" {
			if err := h.Files.Delete(prod.ImagePath); err != nil {
				l.Warn("delete_old_image_failed", "error", err)
			}
		}
		prod.ImagePath = path
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		l.Error("update_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if req.CategoryIDs != nil {
		cats, err := h.loadCategories(req.CategoryIDs)
		if err != nil {
			return err
		}
		if err := h.DB.Model(&prod).Association("Categories").Replace(cats); err != nil {
			l.Error("update_product_failed", "status", 500, "reason", "category_sync", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	if err := h.DB.Preload("Categories").First(&prod, prod.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.reindex(c, prod.ID)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"userID":    userID,
		"productID": prod.ID,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.delete")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	if auth.UserRole(c) != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "only admin can delete products")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&prod).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", prod.ID).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		return tx.Delete(&prod).Error
	})
	if txErr != nil {
		l.Error("delete_product_failed", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if prod.ImagePath != "" {
		if err := h.Files.Delete(prod.ImagePath); err != nil {
			l.Warn("delete_image_failed", "error", err)
		}
	}
	if err := search.RemoveProduct(c.Request().Context(), h.ES, h.ESIndex, prod.ID); err != nil {
		l.Error("es_remove_error", "error", err, "productID", prod.ID)
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"userID":    userID,
		"productID": prod.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}

func (h *ProductHandler) UploadImage(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.upload_image")

	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	role := auth.UserRole(c)
	if prod.UserID != userID && role != models.RoleAdmin && role != models.RoleModerator {
		return echo.NewHTTPError(http.StatusForbidden, "you cannot upload an image for this product")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "image file is required")
	}
	path, err := h.Files.Save(file)
	if err != nil {
		return imageError(err)
	}
	if prod.ImagePath != "" {
		if err := h.Files.Delete(prod.ImagePath); err != nil {
			l.Warn("delete_old_image_failed", "error", err)
		}
	}

	if err := h.DB.Model(&prod).Update("image_path", path).Error; err != nil {
		l.Error("upload_image_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":    "image uploaded",
		"image_path": path,
		"image_url":  h.Files.URL(path),
	})
}

// SearchProducts serves the public search over active products, using
// elasticsearch when configured and a database substring match otherwise.
func (h *ProductHandler) SearchProducts(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "product.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	if h.ES != nil {
		query := search.Query{
			Text:       c.QueryParam("q"),
			CategoryID: uint(util.ParseIntDefault(c.QueryParam("category"), 0)),
			MinPrice:   c.QueryParam("min_price"),
			MaxPrice:   c.QueryParam("max_price"),
			From:       offset,
			Size:       limit,
		}
		total, prods, err := search.Search(c.Request().Context(), h.ES, h.ESIndex, query)
		if err != nil {
			l.Error("search_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
		}
		return c.JSON(http.StatusOK, util.Envelope(prods, page, limit, total))
	}

	q := h.DB.Model(&models.Product{}).Where("products.status = ?", models.ProductActive)
	if s := c.QueryParam("q"); s != "" {
		like := "%" + s + "%"
		q = q.Where("products.title LIKE ? OR products.description LIKE ?", like, like)
	}
	if catID := c.QueryParam("category"); catID != "" {
		q = q.Joins("JOIN category_product ON category_product.product_id = products.id").
			Where("category_product.category_id = ?", catID)
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
		l.Error("search_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	var items []models.Product
	if err := q.Preload("User").Preload("Categories").
		Order(sortClause(c, productSortColumns)).
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		l.Error("search_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, util.Envelope(items, page, limit, total))
}

func imageError(err error) error {
	switch {
	case errors.Is(err, filestore.ErrUnsupportedType), errors.Is(err, filestore.ErrTooLarge):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store image")
	}
}
