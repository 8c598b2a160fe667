package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// accountID extracts the calling account from the X-Account-ID header.
// Tenancy is header-based: the API sits behind a gateway that authenticates
// the caller and stamps the header. A missing header aborts with 400.
func accountID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Account-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "X-Account-ID header is required",
		})
		return "", false
	}
	return id, true
}

// intQuery parses an integer query parameter, falling back to def on absence
// or parse failure.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
