package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-workflow/internal/application/service"
	"github.com/garyjia/expense-workflow/internal/domain/apperr"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/pkg/auth"
)

type authHandlers struct {
	users    service.UserService
	secret   string
	tokenTTL time.Duration
	logger   Logger
}

func newAuthHandlers(users service.UserService, secret string, tokenTTL time.Duration, logger Logger) *authHandlers {
	return &authHandlers{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued token and the authenticated user
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *entity.User `json:"user"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *authHandlers) HealthCheck(c *gin.Context) {
	respondOK(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// Login handles POST /api/auth/login
func (h *authHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if apperr.IsAccessDenied(err) {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ttl := h.tokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultTTL
	}
	token, err := auth.GenerateToken(h.secret, user.ID, user.Role, ttl)
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("issue token: %w", err))
		return
	}

	h.logger.Info("User logged in", "user_id", user.ID, "role", user.Role.String())
	respondOK(c, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl).UTC(),
		User:      user,
	})
}
