package middleware

import "github.com/gin-gonic/gin"

const UserIDKey = "user_id"

// DemoUserID is the account every request acts as.
const DemoUserID uint64 = 1

// DemoUser stands in for authentication: it binds every request to uid.
func DemoUser(uid uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, uid)
		c.Next()
	}
}
