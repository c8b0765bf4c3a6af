package contacts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contacts "github.com/goliatone/go-contacts"
)

// countingUsers wraps the real store to count directory reads.
type countingUsers struct {
	contacts.Users
	getByEmail int
}

func (c *countingUsers) GetByEmail(ctx context.Context, email string) (*contacts.User, error) {
	c.getByEmail++
	return c.Users.GetByEmail(ctx, email)
}

func setupSessionManager(t *testing.T) (*contacts.SessionManager, *countingUsers, *contacts.IdentityCache) {
	t.Helper()

	db := setupTestDB(t)
	store, _ := setupRedisStore(t)

	users := &countingUsers{Users: contacts.NewUsersRepository(db)}
	cache := contacts.NewIdentityCache(store)
	cfg := newTestConfig()
	tokens := contacts.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), nil)

	manager := contacts.NewSessionManager(
		users,
		tokens,
		cache,
		cfg,
		contacts.WithPasswordAuthenticator(contacts.BcryptHasher{Cost: 4}),
	)

	return manager, users, cache
}

func TestLogin(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	user := registerUser(t, users.Users, "user@example.com", "password123", true)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	// The refresh token is persisted so the rotation check has a value to
	// compare against.
	stored, err := users.Users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *stored.RefreshToken)
}

func TestLoginFailures(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	registerUser(t, users.Users, "confirmed@example.com", "password123", true)
	registerUser(t, users.Users, "pending@example.com", "password123", false)

	tests := []struct {
		name     string
		email    string
		password string
		textCode string
	}{
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "password123",
			textCode: contacts.TextCodeUnknownEmail,
		},
		{
			name:     "unconfirmed account",
			email:    "pending@example.com",
			password: "password123",
			textCode: contacts.TextCodeEmailNotConfirmed,
		},
		{
			name:     "wrong password",
			email:    "confirmed@example.com",
			password: "not-the-password",
			textCode: contacts.TextCodeInvalidPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := manager.Login(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Nil(t, pair)
			assert.True(t, contacts.HasTextCode(err, tt.textCode))
		})
	}
}

func TestLoginUnconfirmedBeforePassword(t *testing.T) {
	manager, users, _ := setupSessionManager(t)

	registerUser(t, users.Users, "pending@example.com", "password123", false)

	// Even with a wrong password the unconfirmed failure wins, so the
	// endpoint cannot be used to probe credentials pre-confirmation.
	_, err := manager.Login(context.Background(), "pending@example.com", "wrong-password")
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeEmailNotConfirmed))
}

func TestRefreshRotation(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	user := registerUser(t, users.Users, "user@example.com", "password123", true)

	first, err := manager.Login(ctx, user.Email, "password123")
	require.NoError(t, err)

	second, err := manager.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, second.AccessToken)

	// The first refresh token was rotated out; replaying it revokes the
	// stored value entirely.
	_, err = manager.Refresh(ctx, first.RefreshToken)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeRevokedToken))

	stored, err := users.Users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)

	// The second token now fails too; every holder goes back through login.
	_, err = manager.Refresh(ctx, second.RefreshToken)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeRevokedToken))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	registerUser(t, users.Users, "user@example.com", "password123", true)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, pair.AccessToken)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeWrongScope))
}

func TestCurrentUser(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	registerUser(t, users.Users, "user@example.com", "password123", true)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	resolved, err := manager.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", resolved.Email)
}

func TestCurrentUserCacheHitSkipsDirectory(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	registerUser(t, users.Users, "user@example.com", "password123", true)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = manager.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)

	reads := users.getByEmail

	// A second resolution is served from the cache.
	_, err = manager.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reads, users.getByEmail)
}

func TestCurrentUserRejectsRefreshToken(t *testing.T) {
	manager, users, _ := setupSessionManager(t)
	ctx := context.Background()

	registerUser(t, users.Users, "user@example.com", "password123", true)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = manager.CurrentUser(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeWrongScope))
}

func TestCurrentUserExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	store, _ := setupRedisStore(t)

	users := contacts.NewUsersRepository(db)
	cfg := newTestConfig()

	tokens := contacts.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), nil)
	manager := contacts.NewSessionManager(
		users,
		tokens,
		contacts.NewIdentityCache(store),
		cfg,
		contacts.WithPasswordAuthenticator(contacts.BcryptHasher{Cost: 4}),
	)

	registerUser(t, users, "user@example.com", "password123", true)

	pair, err := manager.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)

	tokens.WithClock(func() time.Time {
		return time.Now().Add(cfg.GetAccessTokenTTL() + time.Hour)
	})

	_, err = manager.CurrentUser(context.Background(), pair.AccessToken)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeTokenExpired))
}

func TestActivitySinkReceivesAuthEvents(t *testing.T) {
	db := setupTestDB(t)
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	cfg := newTestConfig()
	users := contacts.NewUsersRepository(db)
	tokens := contacts.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), nil)

	var events []contacts.ActivityEventType
	sink := contacts.ActivitySinkFunc(func(_ context.Context, event contacts.ActivityEvent) error {
		events = append(events, event.EventType)
		return nil
	})

	manager := contacts.NewSessionManager(
		users,
		tokens,
		contacts.NewIdentityCache(store),
		cfg,
		contacts.WithPasswordAuthenticator(contacts.BcryptHasher{Cost: 4}),
		contacts.WithActivitySink(sink),
	)

	registerUser(t, users, "user@example.com", "password123", true)

	_, err := manager.Login(ctx, "user@example.com", "wrong-password")
	require.Error(t, err)

	pair, err := manager.Login(ctx, "user@example.com", "password123")
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)

	assert.Equal(t, []contacts.ActivityEventType{
		contacts.ActivityEventLoginFailure,
		contacts.ActivityEventLoginSuccess,
		contacts.ActivityEventRefreshRotated,
		contacts.ActivityEventRefreshRevoked,
	}, events)
}

func TestCurrentUserUnknownSubject(t *testing.T) {
	manager, _, _ := setupSessionManager(t)
	cfg := newTestConfig()

	tokens := contacts.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), nil)
	orphan, err := tokens.Issue("ghost@example.com", contacts.ScopeAccess, time.Minute)
	require.NoError(t, err)

	_, err = manager.CurrentUser(context.Background(), orphan)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeUnknownEmail))
}
