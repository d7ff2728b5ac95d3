package auth

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cyblex/backend/internal/models"
)

const identityKey = "auth_identity"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    int64
	Email     string
	FullName  string
	UserType  models.UserType
	TokenID   string
	ExpiresAt time.Time
}

// IdentityFromClaims converts validated claims.
func IdentityFromClaims(c *Claims) Identity {
	id := Identity{
		UserID:   c.UserID,
		Email:    c.Email,
		FullName: c.FullName,
		UserType: c.UserType,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// IsAdmin reports whether the caller is an administrator.
func (i Identity) IsAdmin() bool { return i.UserType == models.UserTypeAdmin }

// SetIdentity stores the caller on the gin context.
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller stored by the JWT middleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
