package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("s3cret", 42, entity.RoleManager, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, entity.Actor{ID: 42, Role: entity.RoleManager}, claims.Actor())
	assert.Equal(t, "42", claims.Subject)
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("s3cret", 1, entity.RoleEmployee, time.Hour)
	require.NoError(t, err)
	defaulted, err := GenerateToken("s3cret", 1, entity.RoleEmployee, -time.Hour)
	require.NoError(t, err)

	past := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		Role:   entity.RoleEmployee,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	pastToken, err := past.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 1, Role: "ROOT"})
	badRoleToken, err := badRole.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"expired", "s3cret", pastToken},
		{"garbage", "s3cret", "not.a.token"},
		{"unknown role", "s3cret", badRoleToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	// non-positive ttl falls back to the default
	_, err = ParseToken("s3cret", defaulted)
	assert.NoError(t, err)
}

func TestGenerateToken_EmptySecret(t *testing.T) {
	_, err := GenerateToken("", 1, entity.RoleAdmin, time.Hour)
	assert.Error(t, err)
}
