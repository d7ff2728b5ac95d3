package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/pkg/response"
)

// RevocationChecker reports whether a token id was revoked at logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWT returns a middleware that validates the bearer token, or the session cookie
// when no Authorization header is sent, and stores the caller's identity.
func JWT(jwtService *auth.JWTService, revocations RevocationChecker, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, "invalid authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else if cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}
		if token == "" {
			response.Unauthorized(c, "missing authorization")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// fail open: Redis outages must not lock every user out
				logger.Warn("revocation check failed", zap.Error(err))
			} else if revoked {
				response.Unauthorized(c, "session has been logged out")
				c.Abort()
				return
			}
		}
		auth.SetIdentity(c, auth.IdentityFromClaims(claims))
		c.Next()
	}
}

// CurrentUser returns the identity set by JWT.
func CurrentUser(c *gin.Context) (auth.Identity, bool) {
	return auth.IdentityFrom(c)
}
