// Package auth issues and verifies the bearer tokens used by the HTTP API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// DefaultTTL applies when GenerateToken is called with a non-positive ttl
const DefaultTTL = 24 * time.Hour

// ErrInvalidToken wraps every parse or verification failure
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload
type Claims struct {
	UserID int64       `json:"user_id"`
	Role   entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the identity carried by the token
func (c *Claims) Actor() entity.Actor {
	return entity.Actor{ID: c.UserID, Role: c.Role}
}

// GenerateToken signs an HS256 token for the user
func GenerateToken(secret string, userID int64, role entity.Role, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenStr and returns its claims
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
