package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSON200(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func JSON400(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

func JSON401(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// AbortWithError writes the status and public message for err.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(KindOf(err).HTTPStatus(), gin.H{"error": PublicMessage(err)})
}
