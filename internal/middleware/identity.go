package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/auth"
	"github.com/pixelblog/backend/internal/identity"
	"github.com/pixelblog/backend/internal/util"
)

// SessionTokenHeader carries the anonymous session token both ways: the
// client presents it on requests, and the server echoes back the token in
// effect so a first-time visitor can persist it.
const SessionTokenHeader = "X-Session-Token"

// IdentityMiddleware resolves who is asking on every request. A valid Bearer
// token yields an authenticated identity; no token yields an anonymous one,
// minting a session token when the client has none yet. A token that fails
// validation is rejected rather than silently downgraded, so clients know to
// re-login.
func IdentityMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionToken := c.GetHeader(SessionTokenHeader)
		if sessionToken != "" && !identity.IsAnonymousToken(sessionToken) {
			// Garbage tokens are replaced, not trusted
			sessionToken = ""
		}

		userID := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			profile, err := authService.ValidateToken(tokenString)
			if err != nil {
				util.RespondUnauthorized(c, "invalid or expired token")
				c.Abort()
				return
			}
			userID = profile.ID
		}

		id := identity.Resolve(userID, sessionToken)
		if id.Kind == identity.KindAnonymous {
			c.Header(SessionTokenHeader, id.SessionToken)
		}

		c.Set(util.ContextKeyIdentity, id)
		c.Next()
	}
}
