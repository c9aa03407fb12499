package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mverih/tezga/internal/models"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]string{
		"name":                  "Mira",
		"email":                 "mira@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", payload)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "mira@example.com", resp.User.Email)
	require.Equal(t, models.RoleUser, resp.User.Role)
	require.NotEmpty(t, resp.User.ID)
	require.NotEmpty(t, resp.Token)

	var stored models.ApiToken
	require.NoError(t, env.DB.Where("token = ?", resp.Token).First(&stored).Error)
	require.Equal(t, resp.User.ID, stored.UserID)

	// same email again
	_, c2 := env.doJSONRequest(http.MethodPost, "/api/v1/register", payload)
	he := httpError(t, env.Auth.Register(c2))
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]string{
		{"name": "", "email": "a@example.com", "password": "password123", "password_confirmation": "password123"},
		{"name": "A", "email": "not-an-email", "password": "password123", "password_confirmation": "password123"},
		{"name": "A", "email": "a@example.com", "password": "short", "password_confirmation": "short"},
		{"name": "A", "email": "a@example.com", "password": "password123", "password_confirmation": "different123"},
	}
	for _, payload := range cases {
		_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", payload)
		he := httpError(t, env.Auth.Register(c))
		require.Equal(t, http.StatusUnprocessableEntity, he.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, models.RoleUser)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/login", map[string]string{
		"email":    user.Email,
		"password": "password123",
	})
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])

	_, cBad := env.doJSONRequest(http.MethodPost, "/api/v1/login", map[string]string{
		"email":    user.Email,
		"password": "wrong-password",
	})
	he := httpError(t, env.Auth.Login(cBad))
	require.Equal(t, http.StatusUnauthorized, he.Code)

	_, cUnknown := env.doJSONRequest(http.MethodPost, "/api/v1/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "password123",
	})
	he = httpError(t, env.Auth.Login(cUnknown))
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, models.RoleUser)

	token := models.ApiToken{Token: "stored-token", UserID: user.ID, ExpiresAt: 1<<62 - 1}
	require.NoError(t, env.DB.Create(&token).Error)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/logout", nil)
	as(c, user)
	c.Set("token", token.Token)
	require.NoError(t, env.Auth.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.ApiToken
	require.NoError(t, env.DB.Where("token = ?", token.Token).First(&stored).Error)
	require.True(t, stored.Revoked)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, models.RoleUser)

	_, cBad := env.doJSONRequest(http.MethodPost, "/api/v1/change-password", map[string]string{
		"current_password":      "wrong-password",
		"password":              "newpassword1",
		"password_confirmation": "newpassword1",
	})
	as(cBad, user)
	he := httpError(t, env.Auth.ChangePassword(cBad))
	require.Equal(t, http.StatusUnprocessableEntity, he.Code)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/change-password", map[string]string{
		"current_password":      "password123",
		"password":              "newpassword1",
		"password_confirmation": "newpassword1",
	})
	as(c, user)
	require.NoError(t, env.Auth.ChangePassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// old password no longer works
	_, cLogin := env.doJSONRequest(http.MethodPost, "/api/v1/login", map[string]string{
		"email":    user.Email,
		"password": "password123",
	})
	he = httpError(t, env.Auth.Login(cLogin))
	require.Equal(t, http.StatusUnauthorized, he.Code)

	recLogin, cNew := env.doJSONRequest(http.MethodPost, "/api/v1/login", map[string]string{
		"email":    user.Email,
		"password": "newpassword1",
	})
	require.NoError(t, env.Auth.Login(cNew))
	require.Equal(t, http.StatusOK, recLogin.Code)
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env, models.RoleModerator)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/user", nil)
	as(c, user)
	require.NoError(t, env.Auth.CurrentUser(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, models.RoleModerator, got.Role)
	require.NotContains(t, rec.Body.String(), "password_hash")
}
