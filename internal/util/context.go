package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/identity"
)

// ContextKeyIdentity is the Gin context key the identity middleware sets
const ContextKeyIdentity = "identity"

// GetIdentityFromContext extracts the resolved identity from the Gin context.
// The identity middleware runs on every route, so a missing identity means a
// wiring bug; respond 500 rather than pretending to be anonymous.
func GetIdentityFromContext(c *gin.Context) (identity.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity not resolved"})
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid identity in context"})
		return identity.Identity{}, false
	}
	return id, true
}

// RequireOwner extracts the identity and refuses with 403 unless it is the
// blog owner. This is the real authorization boundary; the client-side gate
// is UX only.
func RequireOwner(c *gin.Context) (identity.Identity, bool) {
	id, ok := GetIdentityFromContext(c)
	if !ok {
		return identity.Identity{}, false
	}
	if !id.IsOwner() {
		RespondForbidden(c, "only the blog owner can do that")
		return identity.Identity{}, false
	}
	return id, true
}
