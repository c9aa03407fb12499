package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mverih/tezga/internal/models"
)

func TestApproveProduct(t *testing.T) {
	env := newTestEnv(t)
	mod := seedUser(t, env, models.RoleModerator)
	owner := seedUser(t, env, models.RoleUser)
	prod := seedProduct(t, env, owner, models.ProductRejected, "10.00")
	require.NoError(t, env.DB.Model(prod).Update("rejection_reason", "blurry photos").Error)

	rec, c := env.doJSONRequest(http.MethodPut, "/api/v1/moderator/products/1/approve", nil)
	as(c, mod)
	setParam(c, "id", prod.ID)
	require.NoError(t, env.Moderator.ApproveProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var approved models.Product
	require.NoError(t, env.DB.First(&approved, prod.ID).Error)
	require.Equal(t, models.ProductActive, approved.Status)
	require.Empty(t, approved.RejectionReason)
}

func TestRejectProduct(t *testing.T) {
	env := newTestEnv(t)
	mod := seedUser(t, env, models.RoleModerator)
	owner := seedUser(t, env, models.RoleUser)
	prod := seedProduct(t, env, owner, models.ProductPending, "10.00")

	_, cNoReason := env.doJSONRequest(http.MethodPut, "/api/v1/moderator/products/1/reject", map[string]string{})
	as(cNoReason, mod)
	setParam(cNoReason, "id", prod.ID)
	he := httpError(t, env.Moderator.RejectProduct(cNoReason))
	require.Equal(t, http.StatusUnprocessableEntity, he.Code)

	rec, c := env.doJSONRequest(http.MethodPut, "/api/v1/moderator/products/1/reject", map[string]string{
		"reason": "prohibited item",
	})
	as(c, mod)
	setParam(c, "id", prod.ID)
	require.NoError(t, env.Moderator.RejectProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var rejected models.Product
	require.NoError(t, env.DB.First(&rejected, prod.ID).Error)
	require.Equal(t, models.ProductRejected, rejected.Status)
	require.Equal(t, "prohibited item", rejected.RejectionReason)
}

func TestModeratorListsByStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, models.RoleUser)
	seedProduct(t, env, owner, models.ProductPending, "10.00")
	seedProduct(t, env, owner, models.ProductPending, "20.00")
	seedProduct(t, env, owner, models.ProductRejected, "30.00")
	seedProduct(t, env, owner, models.ProductActive, "40.00")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/moderator/products/pending", nil)
	require.NoError(t, env.Moderator.PendingProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(2), resp.Meta.Total)

	recRej, cRej := env.doJSONRequest(http.MethodGet, "/api/v1/moderator/products/rejected", nil)
	require.NoError(t, env.Moderator.RejectedProducts(cRej))
	require.Equal(t, http.StatusOK, recRej.Code)
	require.NoError(t, json.Unmarshal(recRej.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Meta.Total)
}

func TestModeratorGetUsersExcludesStaff(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env, models.RoleAdmin)
	seedUser(t, env, models.RoleModerator)
	plain := seedUser(t, env, models.RoleUser)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/moderator/users", nil)
	require.NoError(t, env.Moderator.GetUsers(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, plain.ID, resp.Data[0].ID)
}

func TestModeratorStats(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, models.RoleUser)
	seedProduct(t, env, owner, models.ProductPending, "10.00")
	seedProduct(t, env, owner, models.ProductRejected, "20.00")
	seedProduct(t, env, owner, models.ProductActive, "30.00")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/moderator/stats", nil)
	require.NoError(t, env.Moderator.Stats(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		PendingProducts  int64 `json:"pending_products"`
		RejectedProducts int64 `json:"rejected_products"`
		ApprovedToday    int64 `json:"approved_today"`
		TotalUsers       int64 `json:"total_users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(1), stats.PendingProducts)
	require.Equal(t, int64(1), stats.RejectedProducts)
	require.Equal(t, int64(1), stats.TotalUsers)
}
