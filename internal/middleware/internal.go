package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const InternalKeyHeader = "X-Internal-Key"

// InternalKeyRequired guards worker-to-API callbacks with a shared secret.
// An unset key rejects everything; there is no open-by-default mode.
func InternalKeyRequired(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(InternalKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
