package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/mverih/tezga/internal/models"
)

const tokenTTL = 24 * time.Hour

// IssueToken signs an access token for the user and records it so it can be
// revoked on logout.
func IssueToken(db *gorm.DB, secret []byte, user *models.User) (string, error) {
	exp := time.Now().Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"exp":  exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("cannot sign token: %w", err)
	}

	record := models.ApiToken{
		Token:     signed,
		UserID:    user.ID,
		ExpiresAt: exp.Unix(),
	}
	if err := db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("cannot store token: %w", err)
	}
	return signed, nil
}

// RevokeToken marks the token revoked; subsequent requests carrying it fail
// the middleware check.
func RevokeToken(db *gorm.DB, raw string) error {
	return db.Model(&models.ApiToken{}).
		Where("token = ?", raw).
		Update("revoked", true).Error
}
