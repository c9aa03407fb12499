package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"

	"github.com/mverih/tezga/internal/filestore"
	"github.com/mverih/tezga/internal/hash"
	"github.com/mverih/tezga/internal/lifecycle"
	"github.com/mverih/tezga/internal/models"
)

type testEnv struct {
	T         *testing.T
	E         *echo.Echo
	DB        *gorm.DB
	Files     *memStore
	Auth      *AuthHandler
	Products  *ProductHandler
	Cats      *CategoryHandler
	Orders    *OrderHandler
	Admin     *AdminHandler
	Moderator *ModeratorHandler
}

// memStore keeps saved images in memory so handler tests never touch the
// filesystem.
type memStore struct {
	saved   []string
	deleted []string
}

func (m *memStore) Save(file *multipart.FileHeader) (string, error) {
	ext := path.Ext(file.Filename)
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
	default:
		return "", filestore.ErrUnsupportedType
	}
	if file.Size > filestore.MaxImageSize {
		return "", filestore.ErrTooLarge
	}
	rel := path.Join("products", fmt.Sprintf("test-%d%s", len(m.saved), ext))
	m.saved = append(m.saved, rel)
	return rel, nil
}

func (m *memStore) Delete(relPath string) error {
	m.deleted = append(m.deleted, relPath)
	return nil
}

func (m *memStore) URL(relPath string) string { return "/uploads/" + relPath }

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.ApiToken{},
	))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)
	secret := []byte("test-secret")
	files := &memStore{}

	env := &testEnv{
		T:     t,
		E:     echo.New(),
		DB:    db,
		Files: files,
	}
	env.Auth = &AuthHandler{DB: db, JWTSecret: secret}
	env.Products = &ProductHandler{DB: db, Files: files}
	env.Cats = &CategoryHandler{DB: db}
	env.Orders = &OrderHandler{DB: db, Lifecycle: &lifecycle.Manager{DB: db}}
	env.Admin = &AdminHandler{DB: db}
	env.Moderator = &ModeratorHandler{DB: db}
	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// as injects the context values RequireAuth would have set.
func as(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("role", user.Role)
}

func setParam(c echo.Context, name string, value interface{}) {
	c.SetParamNames(name)
	c.SetParamValues(fmt.Sprint(value))
}

var userSeq int

func seedUser(t *testing.T, env *testEnv, role models.Role) *models.User {
	t.Helper()
	userSeq++
	pw, err := hash.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{
		Name:         fmt.Sprintf("user%d", userSeq),
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash: pw,
		Role:         role,
	}
	require.NoError(t, env.DB.Create(&user).Error)
	return &user
}

func seedProduct(t *testing.T, env *testEnv, owner *models.User, status models.ProductStatus, price string) *models.Product {
	t.Helper()
	prod := models.Product{
		UserID:      owner.ID,
		Title:       "old bicycle",
		Description: "ridden twice",
		Price:       decimal.RequireFromString(price),
		Currency:    "RSD",
		Status:      status,
	}
	require.NoError(t, env.DB.Create(&prod).Error)
	return &prod
}

func seedCategory(t *testing.T, env *testEnv, name, slug string) *models.Category {
	t.Helper()
	cat := models.Category{Name: name, Slug: slug}
	require.NoError(t, env.DB.Create(&cat).Error)
	return &cat
}

func httpError(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he
}
