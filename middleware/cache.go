package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControlMiddleware lets clients reuse GET responses for maxAge.
func CacheControlMiddleware(maxAge time.Duration) gin.HandlerFunc {
	value := "private, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(c *gin.Context) {
		if c.Request.Method == "GET" {
			c.Header("Cache-Control", value)
		}
		c.Next()
	}
}

func NoStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
