package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mverih/tezga/internal/models"
)

func TestCreateCategory(t *testing.T) {
	env := newTestEnv(t)
	mod := seedUser(t, env, models.RoleModerator)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/categories", map[string]string{
		"name":        "Kuhinjski Aparati",
		"description": "blenders and such",
	})
	as(c, mod)
	require.NoError(t, env.Cats.CreateCategory(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var cat models.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cat))
	require.Equal(t, "kuhinjski-aparati", cat.Slug)

	// duplicate name is a conflict
	_, cDup := env.doJSONRequest(http.MethodPost, "/api/v1/categories", map[string]string{
		"name": "Kuhinjski Aparati",
	})
	as(cDup, mod)
	he := httpError(t, env.Cats.CreateCategory(cDup))
	require.Equal(t, http.StatusConflict, he.Code)

	// plain users cannot manage categories
	user := seedUser(t, env, models.RoleUser)
	_, cUser := env.doJSONRequest(http.MethodPost, "/api/v1/categories", map[string]string{
		"name": "Another",
	})
	as(cUser, user)
	he = httpError(t, env.Cats.CreateCategory(cUser))
	require.Equal(t, http.StatusForbidden, he.Code)
}

func TestUpdateCategoryReslugs(t *testing.T) {
	env := newTestEnv(t)
	admin := seedUser(t, env, models.RoleAdmin)
	cat := seedCategory(t, env, "Old Name", "old-name")

	rec, c := env.doJSONRequest(http.MethodPut, "/api/v1/categories/1", map[string]string{
		"name": "New Name",
	})
	as(c, admin)
	setParam(c, "id", cat.ID)
	require.NoError(t, env.Cats.UpdateCategory(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Category
	require.NoError(t, env.DB.First(&updated, cat.ID).Error)
	require.Equal(t, "new-name", updated.Slug)
}

func TestDeleteCategoryAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	mod := seedUser(t, env, models.RoleModerator)
	admin := seedUser(t, env, models.RoleAdmin)
	owner := seedUser(t, env, models.RoleUser)
	cat := seedCategory(t, env, "Doomed", "doomed")
	prod := seedProduct(t, env, owner, models.ProductActive, "10.00")
	require.NoError(t, env.DB.Model(prod).Association("Categories").Append(cat))

	_, cMod := env.doJSONRequest(http.MethodDelete, "/api/v1/categories/1", nil)
	as(cMod, mod)
	setParam(cMod, "id", cat.ID)
	he := httpError(t, env.Cats.DeleteCategory(cMod))
	require.Equal(t, http.StatusForbidden, he.Code)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/categories/1", nil)
	as(c, admin)
	setParam(c, "id", cat.ID)
	require.NoError(t, env.Cats.DeleteCategory(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	env.DB.Model(&models.Category{}).Count(&count)
	require.Zero(t, count)

	// the product survives, only the association is gone
	var survivor models.Product
	require.NoError(t, env.DB.Preload("Categories").First(&survivor, prod.ID).Error)
	require.Empty(t, survivor.Categories)
}

func TestGetCategoriesWithCounts(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, models.RoleUser)
	cat := seedCategory(t, env, "Bikes", "bikes")
	seedCategory(t, env, "Empty", "empty")
	prod := seedProduct(t, env, owner, models.ProductActive, "10.00")
	require.NoError(t, env.DB.Model(prod).Association("Categories").Append(cat))

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/categories", nil)
	require.NoError(t, env.Cats.GetCategories(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var items []struct {
		models.Category
		ProductsCount int64 `json:"products_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 2)
	// sorted by name: Bikes before Empty
	require.Equal(t, "Bikes", items[0].Name)
	require.Equal(t, int64(1), items[0].ProductsCount)
	require.Equal(t, int64(0), items[1].ProductsCount)
}

func TestGetCategoryProducts(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, models.RoleUser)
	cat := seedCategory(t, env, "Bikes", "bikes")
	in := seedProduct(t, env, owner, models.ProductActive, "10.00")
	seedProduct(t, env, owner, models.ProductActive, "20.00")
	require.NoError(t, env.DB.Model(in).Association("Categories").Append(cat))

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/categories/1/products", nil)
	setParam(c, "id", cat.ID)
	require.NoError(t, env.Cats.GetCategoryProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Meta.Total)
	require.Len(t, resp.Data, 1)
	require.Equal(t, in.ID, resp.Data[0].ID)

	_, cMissing := env.doJSONRequest(http.MethodGet, "/api/v1/categories/99/products", nil)
	setParam(cMissing, "id", 99)
	he := httpError(t, env.Cats.GetCategoryProducts(cMissing))
	require.Equal(t, http.StatusNotFound, he.Code)
}
