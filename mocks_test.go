package contacts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	contacts "github.com/goliatone/go-contacts"
)

// testConfig is a fixed configuration for the auth core.
type testConfig struct {
	signingKey string
	accessTTL  time.Duration
	refreshTTL time.Duration
	confirmTTL time.Duration
	cacheTTL   time.Duration
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey: "test-signing-key",
		accessTTL:  15 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
		confirmTTL: 7 * 24 * time.Hour,
		cacheTTL:   15 * time.Minute,
	}
}

func (c *testConfig) GetSigningKey() string                  { return c.signingKey }
func (c *testConfig) GetIssuer() string                      { return "contacts-test" }
func (c *testConfig) GetAccessTokenTTL() time.Duration       { return c.accessTTL }
func (c *testConfig) GetRefreshTokenTTL() time.Duration      { return c.refreshTTL }
func (c *testConfig) GetConfirmationTokenTTL() time.Duration { return c.confirmTTL }
func (c *testConfig) GetIdentityCacheTTL() time.Duration     { return c.cacheTTL }
func (c *testConfig) GetBaseURL() string                     { return "http://localhost:8080" }

// setupTestDB opens an isolated in-memory sqlite database with the schema
// applied.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, contacts.RunMigrations(context.Background(), bunDB, "sqlite"))

	return bunDB
}

// setupRedisStore backs a CacheStore with an in-process redis.
func setupRedisStore(t *testing.T) (*contacts.RedisCacheStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return contacts.NewRedisCacheStore(client), mr
}

// capturingMailer records confirmation emails and signals on a channel so
// tests can wait for the background send.
type capturingMailer struct {
	mu     sync.Mutex
	sent   []contacts.ConfirmationEmail
	signal chan contacts.ConfirmationEmail
}

func newCapturingMailer() *capturingMailer {
	return &capturingMailer{
		signal: make(chan contacts.ConfirmationEmail, 8),
	}
}

func (m *capturingMailer) SendConfirmation(_ context.Context, msg contacts.ConfirmationEmail) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	m.signal <- msg
	return nil
}

func (m *capturingMailer) waitForEmail(t *testing.T) contacts.ConfirmationEmail {
	t.Helper()
	select {
	case msg := <-m.signal:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for confirmation email")
		return contacts.ConfirmationEmail{}
	}
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return id
}

// registerUser seeds a user through the repository with a real password
// hash at the cheapest cost.
func registerUser(t *testing.T, users contacts.Users, email, password string, confirmed bool) *contacts.User {
	t.Helper()

	hash, err := contacts.BcryptHasher{Cost: 4}.HashPassword(password)
	require.NoError(t, err)

	user, err := users.Register(context.Background(), &contacts.User{
		Username:     "tester",
		Email:        email,
		PasswordHash: hash,
		Confirmed:    confirmed,
	})
	require.NoError(t, err)

	return user
}
