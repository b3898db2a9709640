package middleware

import (
	"log"
	"runtime/debug"

	"timearchitect/utils"

	"github.com/gin-gonic/gin"
)

func EnhancedRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID, _ := c.Get("request_id")
				log.Printf("Panic recovered (request %v) %s %s: %v\n%s",
					requestID, c.Request.Method, c.Request.URL.Path, err, debug.Stack())
				utils.TrackError("panic", c.FullPath())
				utils.InternalError(c, "Internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
