package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/models"
)

type Middleware struct {
	DB        *gorm.DB
	JWTSecret []byte
}

// RequireAuth validates the bearer token and checks it against the
// api_tokens table so logout actually revokes access.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.JWTSecret, nil
		})
		if err != nil || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		var stored models.ApiToken
		if err := m.DB.Where("token = ?", raw).First(&stored).Error; err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown token")
		}
		if stored.Revoked || time.Now().Unix() > stored.ExpiresAt {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked or expired")
		}

		setUserContext(c, claims, raw)
		return next(c)
	}
}

// RequireRole gates a route group on explicit role membership. Roles are
// enumerated per group, not ranked.
func (m *Middleware) RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(models.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setUserContext(c echo.Context, claims jwt.MapClaims, raw string) {
	if sub, ok := claims["sub"].(float64); ok {
		c.Set("userID", uint(sub))
	}
	if role, ok := claims["role"].(string); ok {
		c.Set("role", models.Role(role))
	}
	c.Set("token", raw)
}

// UserID reads the authenticated user id set by RequireAuth.
func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	return id, nil
}

func UserRole(c echo.Context) models.Role {
	role, _ := c.Get("role").(models.Role)
	return role
}

func RawToken(c echo.Context) string {
	raw, _ := c.Get("token").(string)
	return raw
}
