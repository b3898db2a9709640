package middleware

import (
	"net/http"
	"strings"

	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

// RequireJSON rejects write requests whose body is not JSON.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			contentType := c.GetHeader("Content-Type")
			if c.Request.ContentLength != 0 && !strings.HasPrefix(contentType, "application/json") {
				c.JSON(http.StatusUnsupportedMediaType, &utils.Response{
					Status: http.StatusUnsupportedMediaType,
					Error:  "Content-Type must be application/json",
				})
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
