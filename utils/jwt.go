package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ExtractToken returns the bearer token from the Authorization header, or
// "" when the header is absent or uses another scheme.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.Fields(authHeader)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}
