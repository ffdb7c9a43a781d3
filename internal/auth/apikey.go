package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// clientCtxKey is the Gin context key holding the authenticated client name.
const clientCtxKey = "client_name"

// APIKeyMiddleware guards operator actions by mapping X-API-Key to a client name.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		client, ok := keys[apiKey]
		if !ok || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(clientCtxKey, client)
		c.Next()
	}
}

// Client returns the authenticated client name, or "" on public routes.
func Client(c *gin.Context) string {
	return c.GetString(clientCtxKey)
}
