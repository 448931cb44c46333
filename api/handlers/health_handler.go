// api/handlers/health_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealthGet answers liveness probes.
func HandleHealthGet(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
