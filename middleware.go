package main

import (
	"strings"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/apperr"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/tokens"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxUserIDKey = "userID"

// requireAuth validates the bearer access token and confirms the user still
// exists before letting the request through. Refresh tokens are rejected
// here regardless of validity: their type discriminator keeps them out of
// access-token positions.
func (a *App) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.fail(c, apperr.Authentication("No token provided"))
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := a.tokens.Verify(tokenString)
		if err != nil {
			if err == tokens.ErrTokenExpired {
				a.fail(c, apperr.Authentication("Token expired"))
			} else {
				a.fail(c, apperr.Authentication("Invalid token"))
			}
			c.Abort()
			return
		}
		if claims.TokenType == tokens.TypeRefresh {
			a.fail(c, apperr.Authentication("Invalid token"))
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			a.fail(c, apperr.Authentication("Invalid token"))
			c.Abort()
			return
		}

		var user models.User
		if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
			a.fail(c, apperr.Authentication("User not found"))
			c.Abort()
			return
		}

		c.Set(ctxUserIDKey, userID)
		c.Next()
	}
}

// currentUserID returns the authenticated user id set by requireAuth.
func currentUserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ctxUserIDKey)
	id, _ := v.(uuid.UUID)
	return id
}

// rateLimit is a Redis fixed-window limiter. Without a cache it is a no-op,
// as is any Redis failure: limiting is best-effort protection, not a
// correctness requirement.
func (a *App) rateLimit(scope string, max int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.cache.Enabled() {
			c.Next()
			return
		}
		key := cache.RateLimitKey(c.ClientIP(), scope)
		count, err := a.cache.Incr(c.Request.Context(), key, window)
		if err != nil {
			c.Next()
			return
		}
		if count > max {
			a.fail(c, apperr.RateLimited(""))
			c.Abort()
			return
		}
		c.Next()
	}
}
