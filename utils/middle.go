package utils

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
)

// AuthMiddleware verifies the bearer JWT and sets user context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			AbortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := VerifyToken(secret, token)
		if err != nil {
			AbortError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextUserID, claims.UserId)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id set by AuthMiddleware.
func CurrentUserID(c *gin.Context) uint64 {
	return c.MustGet(ContextUserID).(uint64)
}
