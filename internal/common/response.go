package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes data as the whole body. Clients read plain JSON on success.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail aborts the request with {"message": msg}.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}
