package middleware

import (
	"net/http"

	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimiter caps request bodies; activity reports are small and a
// replayed queue is sent one item per request.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, &utils.Response{
				Status: http.StatusRequestEntityTooLarge,
				Error:  "Request body too large",
			})
			c.Abort()
			return
		}

		var w http.ResponseWriter = c.Writer
		c.Request.Body = http.MaxBytesReader(w, c.Request.Body, maxSize)
		c.Next()
	}
}
