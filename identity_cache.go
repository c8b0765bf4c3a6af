package contacts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultIdentityCacheTTL bounds how stale a cached identity may get; there
// is no invalidation on profile mutation.
const DefaultIdentityCacheTTL = 15 * time.Minute

const identityKeyPrefix = "user:"

// snapshotVersion guards the cache schema. Bump it whenever identitySnapshot
// changes shape; old entries then read as misses instead of decoding wrong.
const snapshotVersion = 1

// identitySnapshot is the explicit field set we persist per user. It is a
// deliberate subset: authorization decisions beyond request identity
// (password checks, confirmation state at login) always go to the durable
// store, never through here.
type identitySnapshot struct {
	Version   int       `json:"v"`
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	Confirmed bool      `json:"confirmed"`
}

func snapshotFromUser(user *User) identitySnapshot {
	return identitySnapshot{
		Version:   snapshotVersion,
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Avatar:    user.Avatar,
		Confirmed: user.Confirmed,
	}
}

func (s identitySnapshot) toUser() *User {
	return &User{
		ID:        s.ID,
		Email:     s.Email,
		Username:  s.Username,
		Avatar:    s.Avatar,
		Confirmed: s.Confirmed,
	}
}

// IdentityCache keeps short-lived user snapshots keyed by email in front of
// the durable Users store. It is best effort on both paths: a failed read
// is a miss, a failed write is a log line. Absence never means "user does
// not exist".
type IdentityCache struct {
	store  CacheStore
	ttl    time.Duration
	logger Logger
}

type IdentityCacheOption func(*IdentityCache)

func WithIdentityCacheTTL(ttl time.Duration) IdentityCacheOption {
	return func(c *IdentityCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithIdentityCacheLogger(logger Logger) IdentityCacheOption {
	return func(c *IdentityCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewIdentityCache(store CacheStore, opts ...IdentityCacheOption) *IdentityCache {
	cache := &IdentityCache{
		store:  store,
		ttl:    DefaultIdentityCacheTTL,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// TTL returns the configured entry lifetime.
func (c *IdentityCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached identity for an email, or false on any kind of
// miss: absent key, expired entry, store failure, or an entry written by an
// incompatible schema version.
func (c *IdentityCache) Get(ctx context.Context, email string) (*User, bool) {
	raw, err := c.store.Get(ctx, identityKeyPrefix+email)
	if err != nil {
		if !HasTextCode(err, TextCodeCacheMiss) {
			c.logger.Warn("identity cache read failed", "email", email, "error", err)
		}
		return nil, false
	}

	var snapshot identitySnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		c.logger.Warn("identity cache entry corrupt", "email", email, "error", err)
		return nil, false
	}

	if snapshot.Version != snapshotVersion {
		return nil, false
	}

	return snapshot.toUser(), true
}

// Put writes through the snapshot for a user. Failures are logged and
// swallowed; the durable store stays the source of truth and an
// authenticated request must never fail because the cache did.
func (c *IdentityCache) Put(ctx context.Context, user *User) {
	if user == nil || user.Email == "" {
		return
	}

	raw, err := json.Marshal(snapshotFromUser(user))
	if err != nil {
		c.logger.Error("identity cache marshal failed", "email", user.Email, "error", err)
		return
	}

	if err := c.store.Set(ctx, identityKeyPrefix+user.Email, raw, c.ttl); err != nil {
		c.logger.Warn("identity cache write failed", "email", user.Email, "error", err)
	}
}

// Drop removes the entry for an email. Nothing in the request path calls
// this; it exists for operational tooling.
func (c *IdentityCache) Drop(ctx context.Context, email string) {
	if err := c.store.Del(ctx, identityKeyPrefix+email); err != nil {
		c.logger.Warn("identity cache delete failed", "email", email, "error", err)
	}
}
