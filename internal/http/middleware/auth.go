package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/auth"
)

// RequireAuth authenticates the request from the access-token cookie and
// stores the caller's identity on the context for downstream handlers.
func RequireAuth(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.AccessCookieName)
		if err != nil || token == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := jwt.Parse(token)
		if err != nil || claims.Type != "access" {
			abortUnauthorized(c)
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
