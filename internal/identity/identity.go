// Package identity resolves who the current actor is: the blog owner, an
// authenticated visitor, or an anonymous visitor identified by a session
// token. Every service that cares about identity takes an Identity value
// explicitly rather than reading ambient auth state.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"gorm.io/gorm"
)

// Kind discriminates the identity union
type Kind string

const (
	// KindOwner is the single profile with is_blog_owner = true
	KindOwner Kind = "owner"
	// KindUser is any other authenticated profile
	KindUser Kind = "user"
	// KindAnonymous is a visitor identified only by a session token
	KindAnonymous Kind = "anonymous"
)

// Identity is a tagged union: UserID is set for owner/user, SessionToken for
// anonymous. Exactly one axis is ever populated.
type Identity struct {
	Kind         Kind
	UserID       string
	SessionToken string
	Username     string
}

// IsOwner reports whether this identity may use the authoring workflow
func (i Identity) IsOwner() bool {
	return i.Kind == KindOwner
}

// IsAuthenticated reports whether this identity is backed by a profile
func (i Identity) IsAuthenticated() bool {
	return i.Kind == KindOwner || i.Kind == KindUser
}

// Key returns a stable string for this identity, used for the per-post
// toggle guard and for logging.
func (i Identity) Key() string {
	if i.IsAuthenticated() {
		return "user:" + i.UserID
	}
	return "anon:" + i.SessionToken
}

// Anonymous builds an anonymous identity from a session token
func Anonymous(token string) Identity {
	return Identity{Kind: KindAnonymous, SessionToken: token}
}

const (
	tokenPrefix      = "anon_"
	tokenSuffixLen   = 9
	tokenSuffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewAnonymousToken generates a fresh session token in the form
// anon_<unix-ms>_<9-char-base36>. The client persists it locally, so the
// token acts as a pseudo-device identity for scoping anonymous likes.
func NewAnonymousToken() string {
	suffix := make([]byte, tokenSuffixLen)
	max := big.NewInt(int64(len(tokenSuffixChars)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unrecoverable; fall back to
			// a time-derived character rather than aborting identity issuance
			suffix[i] = tokenSuffixChars[time.Now().UnixNano()%int64(len(tokenSuffixChars))]
			continue
		}
		suffix[i] = tokenSuffixChars[n.Int64()]
	}
	return fmt.Sprintf("%s%d_%s", tokenPrefix, time.Now().UnixMilli(), suffix)
}

// IsAnonymousToken reports whether s looks like a token this package issued
func IsAnonymousToken(s string) bool {
	if !strings.HasPrefix(s, tokenPrefix) {
		return false
	}
	rest := strings.TrimPrefix(s, tokenPrefix)
	parts := strings.SplitN(rest, "_", 2)
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// Resolve determines the identity for a request. userID comes from a
// validated JWT (empty when unauthenticated); sessionToken from the
// X-Session-Token header (empty when the client has none yet, in which case
// a fresh token is issued).
//
// Any profile lookup failure degrades to anonymous: authorization is
// fail-closed, but identity resolution never blocks a read.
func Resolve(userID, sessionToken string) Identity {
	if sessionToken == "" {
		sessionToken = NewAnonymousToken()
	}

	if userID == "" || database.DB == nil {
		return Anonymous(sessionToken)
	}

	var profile models.Profile
	err := database.DB.First(&profile, "id = ?", userID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WarnWithError("Profile lookup failed, degrading to anonymous", err)
		}
		return Anonymous(sessionToken)
	}

	kind := KindUser
	if profile.IsBlogOwner {
		kind = KindOwner
	}
	return Identity{Kind: kind, UserID: profile.ID, Username: profile.Username}
}
