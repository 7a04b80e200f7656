package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as seen by handlers. It hides the
// gin context keys so handler code never reads them directly.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Role returns the user's role.
	Role() string
	// HasRole reports whether the user holds the given role.
	HasRole(role string) bool
	// IsAuthenticated reports whether a valid token was presented.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	role          string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID        { return i.userID }
func (i *identity) Role() string             { return i.role }
func (i *identity) HasRole(role string) bool { return i.role == role }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity reads the caller identity that AuthRequired stored on the
// context. Requests that never passed AuthRequired yield an
// unauthenticated identity.
func GetIdentity(c *gin.Context) Identity {
	rawID, ok := c.Get(ContextUserIDKey)
	if !ok {
		return &identity{}
	}
	uid, ok := rawID.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	roleName := ""
	if raw, ok := c.Get(ContextRoleKey); ok {
		roleName, _ = raw.(string)
	}

	return &identity{userID: uid, role: roleName, authenticated: true}
}

// MustGetIdentity is GetIdentity for protected routes: when the caller is
// not authenticated it aborts with 401 and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
