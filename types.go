package contacts

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the knobs the auth core needs. Implementations usually come
// from the application config layer; see cmd/contacts-server.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetConfirmationTokenTTL() time.Duration
	GetIdentityCacheTTL() time.Duration
	GetBaseURL() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// CacheStore is the key-value surface the identity cache runs on. Get must
// return ErrCacheMiss for absent keys so callers can tell a miss from an
// outage.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ConfirmationEmail is the payload handed to a Mailer. Token is a
// confirmation-scoped JWT; BaseURL is the public address the confirmation
// link should point at.
type ConfirmationEmail struct {
	To       string
	Username string
	Token    string
	BaseURL  string
}

// Mailer dispatches account emails. Implementations must be safe for
// concurrent use; the workflow handlers call them from background
// goroutines and never block a request on delivery.
type Mailer interface {
	SendConfirmation(ctx context.Context, msg ConfirmationEmail) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CONTACTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CONTACTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CONTACTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CONTACTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
