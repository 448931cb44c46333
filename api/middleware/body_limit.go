// api/middleware/body_limit.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit caps the request body at limitMB megabytes. Reads past the cap
// fail inside the handler and abort the request.
func BodyLimit(limitMB int) gin.HandlerFunc {
	limit := int64(limitMB) * 1024 * 1024
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
