package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var warnOnce sync.Once

// APIKeyAuthMiddleware guards the admin read endpoints (list, export,
// stats) with a single shared key, accepted either as "X-API-Key" or as
// "Authorization: ApiKey <key>". With no key configured, enforcement is
// skipped so local development works out of the box.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			warnOnce.Do(func() {
				slog.Warn("ADMIN_API_KEY not set, admin endpoints are unprotected")
			})
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "ApiKey ") {
				provided = strings.TrimPrefix(authHeader, "ApiKey ")
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Next()
	}
}
