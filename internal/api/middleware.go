package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biblioteca/internal/models"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
)

// bearerToken extracts the token from the Authorization header. Websocket
// clients cannot set headers, so the token query parameter is accepted too.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// Authenticate rejects requests without a valid token for required
func (h *Handler) Authenticate(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		identity, err := h.auth.Authorize(c.Request.Context(), token, required)
		if err != nil {
			h.abort(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token != "" {
			identity, err := h.auth.Authorize(c.Request.Context(), token, models.RoleStandard)
			if err == nil {
				c.Set(identityKey, identity)
			} else {
				h.logger.Debug("Ignoring invalid token on public route", zap.Error(err))
			}
		}
		c.Next()
	}
}

// identity returns the caller set by the auth middlewares
func identity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// RequestLogger logs every request through zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if id, ok := identity(c); ok {
			fields = append(fields, zap.String("user_id", id.UserID))
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", fields...)
		case status >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
