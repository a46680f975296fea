// Package auth issues and verifies the HS256 access tokens carried by staff
// devices and the dashboard.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the staff identity and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the token grants admin operations.
func (c *Claims) IsAdmin() bool {
	return c.Role == common.RoleAdmin
}

func GenerateToken(userID, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			Subject:   userID,
		},
		UserID: userID,
		Role:   role,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies tokenString and returns its claims. An expired token
// yields common.ErrTokenExpired; any other failure common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
