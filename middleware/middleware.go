// Package middleware holds request guards shared by the HTTP routes and
// the WebSocket endpoint.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// ValidObserverToken reports whether a supplied token matches WS_AUTH_TOKEN.
// An unset WS_AUTH_TOKEN disables the gate entirely. Constant-time
// comparison to prevent timing attacks.
func ValidObserverToken(token string) bool {
	expected := os.Getenv("WS_AUTH_TOKEN")
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// TokenAuth guards REST routes with the same observer token, accepted as a
// bearer header or a token query parameter.
func TokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if !ValidObserverToken(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}
		c.Next()
	}
}
