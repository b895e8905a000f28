// README: Per-request provider API key override taken from the Joi-ApiKey header.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/ai"
)

const APIKeyHeader = "Joi-ApiKey"

// APIKeyOverride stores a non-empty Joi-ApiKey header in the request context. Providers read it from
// there for this request only; configured keys are never replaced.
func APIKeyOverride() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := strings.TrimSpace(c.GetHeader(APIKeyHeader)); key != "" {
			c.Request = c.Request.WithContext(ai.WithAPIKey(c.Request.Context(), key))
		}
		c.Next()
	}
}
