package contacts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenScope tags a token with the single operation class allowed to
// consume it. Confirmation tokens carry an explicit scope too, so a leaked
// confirmation link can never pass an access or refresh check.
type TokenScope string

const (
	// ScopeAccess authorizes resource requests.
	ScopeAccess TokenScope = "access_token"
	// ScopeRefresh authorizes exchanging the token for a new pair.
	ScopeRefresh TokenScope = "refresh_token"
	// ScopeEmailConfirm authorizes flipping an account to confirmed.
	ScopeEmailConfirm TokenScope = "email_confirmation"
)

// TokenClaims is the payload embedded in every signed token: the registered
// sub/iat/exp set plus the scope tag. Nothing else about the wire format is
// guaranteed stable.
type TokenClaims struct {
	jwt.RegisteredClaims
	Scope TokenScope `json:"scope,omitempty"`
}

// Subject returns the subject claim, the account email.
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *TokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
