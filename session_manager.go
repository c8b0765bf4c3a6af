package contacts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// SessionManager drives login, refresh-token rotation, and per-request
// identity resolution. It holds no mutable state of its own; the durable
// Users store owns the canonical refresh-token value and the IdentityCache
// is a derived, best-effort replica.
type SessionManager struct {
	users     Users
	tokens    TokenService
	cache     *IdentityCache
	passwords PasswordAuthenticator
	activity  ActivitySink
	cfg       Config
	logger    Logger
}

type SessionManagerOption func(*SessionManager)

func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(s *SessionManager) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPasswordAuthenticator overrides the bcrypt default. Tests use this to
// drop the work factor.
func WithPasswordAuthenticator(hasher PasswordAuthenticator) SessionManagerOption {
	return func(s *SessionManager) {
		if hasher != nil {
			s.passwords = hasher
		}
	}
}

// WithActivitySink routes login and refresh outcomes to an audit sink.
func WithActivitySink(sink ActivitySink) SessionManagerOption {
	return func(s *SessionManager) {
		s.activity = normalizeActivitySink(sink)
	}
}

func NewSessionManager(users Users, tokens TokenService, cache *IdentityCache, cfg Config, opts ...SessionManagerOption) *SessionManager {
	manager := &SessionManager{
		users:     users,
		tokens:    tokens,
		cache:     cache,
		passwords: BcryptHasher{},
		activity:  noopActivitySink{},
		cfg:       cfg,
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	return manager
}

// Login verifies credentials against the durable store and issues a fresh
// access/refresh pair. The cache is never consulted here; establishing
// trust always reads the source of truth. Persisting the new refresh value
// is what revokes the previous one.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnknownEmail
		}
		return nil, storeFailure(err)
	}

	// Checked before the password so unconfirmed accounts cannot probe
	// credential correctness.
	if !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Info("login rejected", "email", email, "reason", "password mismatch")
		s.record(ctx, ActivityEventLoginFailure, email)
		return nil, ErrInvalidPassword
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventLoginSuccess, email)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the stored
// value. Presenting a token that no longer matches the stored value means
// it was rotated out; we clear the stored value entirely so the holder of
// the newer token is forced back through login too.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Decode(refreshToken, ScopeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnknownEmail
		}
		return nil, storeFailure(err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		if err := s.users.StoreRefreshToken(ctx, user.ID, nil); err != nil {
			s.logger.Error("failed to clear refresh token after reuse", "email", user.Email, "error", err)
		}
		s.logger.Warn("rotated-out refresh token presented", "email", user.Email)
		s.record(ctx, ActivityEventRefreshRevoked, user.Email)
		return nil, ErrRevokedToken
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEventRefreshRotated, user.Email)
	return pair, nil
}

// CurrentUser resolves the identity behind an access token: decode, cache
// lookup, then one durable read with a write-through on miss.
func (s *SessionManager) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.Decode(accessToken, ScopeAccess)
	if err != nil {
		return nil, err
	}

	email := claims.Subject()
	if cached, ok := s.cache.Get(ctx, email); ok {
		return cached, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Token outlived the account; tokens are only checked against
			// the directory at resolution time.
			return nil, ErrUnknownEmail
		}
		return nil, storeFailure(err)
	}

	s.cache.Put(ctx, user)

	return user, nil
}

func (s *SessionManager) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.tokens.Issue(user.Email, ScopeAccess, s.cfg.GetAccessTokenTTL())
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.Issue(user.Email, ScopeRefresh, s.cfg.GetRefreshTokenTTL())
	if err != nil {
		return nil, err
	}

	if err := s.users.StoreRefreshToken(ctx, user.ID, &refresh); err != nil {
		return nil, storeFailure(err)
	}

	return NewTokenPair(access, refresh), nil
}

func (s *SessionManager) record(ctx context.Context, event ActivityEventType, email string) {
	err := s.activity.Record(ctx, ActivityEvent{
		EventType:  event,
		Email:      email,
		OccurredAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("activity sink failed", "event", string(event), "error", err)
	}
}

// storeFailure separates "the store could not answer" from the auth
// failures so transports can report 5xx-class outcomes instead of a
// misleading unauthorized.
func storeFailure(err error) error {
	if goerrors.Is(err, context.DeadlineExceeded) || goerrors.Is(err, context.Canceled) {
		return ErrStoreTimeout
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "user store unavailable")
}
