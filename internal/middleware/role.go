package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given user types.
func RequireRole(types ...models.UserType) gin.HandlerFunc {
	allowed := make(map[models.UserType]struct{})
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[id.UserType]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
