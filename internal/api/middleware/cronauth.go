package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/logger"
)

// CronAuth guards the queue-processing endpoint with a shared secret. The
// secret arrives in the X-Cron-Secret header, or as a ?secret= query parameter
// for schedulers that cannot set headers. An empty configured secret rejects
// everything, so a missing config value fails closed.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Cron-Secret")
		if provided == "" {
			provided = c.Query("secret")
		}

		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			logger.CtxWarn(c.Request.Context(), "Rejected queue invocation: client_ip=%s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		c.Next()
	}
}
