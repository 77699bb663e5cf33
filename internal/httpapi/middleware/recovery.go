package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/devassist/internal/common"
)

// Recovery turns a panic into a 500 {"message":"internal error"}.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Recovery] panic request_id=%s %s %s: %v\n%s",
					RequestIDFrom(c), c.Request.Method, c.Request.URL.Path, r, debug.Stack())
				common.Fail(c, http.StatusInternalServerError, "internal error")
			}
		}()
		c.Next()
	}
}
