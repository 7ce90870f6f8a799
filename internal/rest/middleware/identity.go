package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the caller's user id, set by the gateway after authentication.
const UserIDHeader = "X-User-ID"

// Identity stores the caller's user id under "user_id" and rejects requests without one.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := strconv.ParseInt(c.GetHeader(UserIDHeader), 10, 64)
		if err != nil || uid <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user not authenticated"})
			return
		}
		c.Set("user_id", uid)
		c.Next()
	}
}
