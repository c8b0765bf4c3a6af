package contacts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contacts "github.com/goliatone/go-contacts"
)

func setupHandlers(t *testing.T) (contacts.RepositoryManager, contacts.TokenService, *capturingMailer, *contacts.IdentityCache) {
	t.Helper()

	db := setupTestDB(t)
	store, _ := setupRedisStore(t)

	repo := contacts.NewRepositoryManager(db)
	cfg := newTestConfig()
	tokens := contacts.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), nil)
	cache := contacts.NewIdentityCache(store)

	return repo, tokens, newCapturingMailer(), cache
}

func TestSignup(t *testing.T) {
	repo, tokens, mailer, _ := setupHandlers(t)
	handler := contacts.NewSignupHandler(repo, tokens, mailer, newTestConfig(), nil)
	ctx := context.Background()

	var created *contacts.User
	err := handler.Execute(ctx, contacts.SignupMessage{
		Username:  "pepe",
		Email:     "pepe@example.com",
		Password:  "password123",
		OnCreated: func(u *contacts.User) { created = u },
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "pepe", created.Username)
	assert.False(t, created.Confirmed)

	user, err := repo.Users().GetByEmail(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.False(t, user.Confirmed)

	// The queued email carries a confirmation scoped token for the address.
	msg := mailer.waitForEmail(t)
	assert.Equal(t, "pepe@example.com", msg.To)

	claims, err := tokens.Decode(msg.Token, contacts.ScopeEmailConfirm)
	require.NoError(t, err)
	assert.Equal(t, "pepe@example.com", claims.Subject())
}

func TestSignupUsernameFromEmail(t *testing.T) {
	repo, tokens, mailer, _ := setupHandlers(t)
	handler := contacts.NewSignupHandler(repo, tokens, mailer, newTestConfig(), nil)

	var created *contacts.User
	err := handler.Execute(context.Background(), contacts.SignupMessage{
		Email:     "grace@example.com",
		Password:  "password123",
		OnCreated: func(u *contacts.User) { created = u },
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "grace", created.Username)
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo, tokens, mailer, _ := setupHandlers(t)
	handler := contacts.NewSignupHandler(repo, tokens, mailer, newTestConfig(), nil)
	ctx := context.Background()

	msg := contacts.SignupMessage{
		Username: "pepe",
		Email:    "pepe@example.com",
		Password: "password123",
	}
	require.NoError(t, handler.Execute(ctx, msg))
	mailer.waitForEmail(t)

	err := handler.Execute(ctx, msg)
	require.Error(t, err)
	assert.True(t, contacts.HasTextCode(err, contacts.TextCodeAccountExists))
}

func TestConfirmEmail(t *testing.T) {
	repo, tokens, mailer, cache := setupHandlers(t)
	cfg := newTestConfig()
	signup := contacts.NewSignupHandler(repo, tokens, mailer, cfg, nil)
	confirm := contacts.NewConfirmEmailHandler(repo, tokens, cache)
	ctx := context.Background()

	require.NoError(t, signup.Execute(ctx, contacts.SignupMessage{
		Email:    "pepe@example.com",
		Password: "password123",
	}))
	email := mailer.waitForEmail(t)

	var resp *contacts.ConfirmEmailResponse
	err := confirm.Execute(ctx, contacts.ConfirmEmailMessage{
		Token:      email.Token,
		OnResponse: func(r *contacts.ConfirmEmailResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "pepe@example.com", resp.Email)
	assert.False(t, resp.AlreadyConfirmed)

	user, err := repo.Users().GetByEmail(ctx, "pepe@example.com")
	require.NoError(t, err)
	assert.True(t, user.Confirmed)

	// Clicking the link again succeeds and reports the state.
	err = confirm.Execute(ctx, contacts.ConfirmEmailMessage{
		Token:      email.Token,
		OnResponse: func(r *contacts.ConfirmEmailResponse) { resp = r },
	})
	require.NoError(t, err)
	assert.True(t, resp.AlreadyConfirmed)
}

func TestConfirmEmailBadToken(t *testing.T) {
	repo, tokens, _, cache := setupHandlers(t)
	confirm := contacts.NewConfirmEmailHandler(repo, tokens, cache)
	ctx := context.Background()

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage",
			token: func(t *testing.T) string { return "not-a-token" },
		},
		{
			name: "wrong scope",
			token: func(t *testing.T) string {
				token, err := tokens.Issue("pepe@example.com", contacts.ScopeAccess, time.Minute)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "unknown account",
			token: func(t *testing.T) string {
				token, err := tokens.Issue("ghost@example.com", contacts.ScopeEmailConfirm, time.Minute)
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := confirm.Execute(ctx, contacts.ConfirmEmailMessage{Token: tt.token(t)})
			require.Error(t, err)
			assert.True(t, contacts.HasTextCode(err, contacts.TextCodeVerification))
		})
	}
}

func TestResendConfirmation(t *testing.T) {
	repo, tokens, mailer, _ := setupHandlers(t)
	cfg := newTestConfig()
	handler := contacts.NewResendConfirmationHandler(repo, tokens, mailer, cfg, nil)
	ctx := context.Background()

	registerUser(t, repo.Users(), "pending@example.com", "password123", false)
	registerUser(t, repo.Users(), "done@example.com", "password123", true)

	t.Run("unknown email is not an error", func(t *testing.T) {
		var resp *contacts.ResendConfirmationResponse
		err := handler.Execute(ctx, contacts.ResendConfirmationMessage{
			Email:      "nobody@example.com",
			OnResponse: func(r *contacts.ResendConfirmationResponse) { resp = r },
		})
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.False(t, resp.Found)
		assert.False(t, resp.Queued)
	})

	t.Run("already confirmed sends nothing", func(t *testing.T) {
		var resp *contacts.ResendConfirmationResponse
		err := handler.Execute(ctx, contacts.ResendConfirmationMessage{
			Email:      "done@example.com",
			OnResponse: func(r *contacts.ResendConfirmationResponse) { resp = r },
		})
		require.NoError(t, err)
		assert.True(t, resp.Found)
		assert.True(t, resp.AlreadyConfirmed)
		assert.False(t, resp.Queued)
	})

	t.Run("pending account gets a fresh token", func(t *testing.T) {
		var resp *contacts.ResendConfirmationResponse
		err := handler.Execute(ctx, contacts.ResendConfirmationMessage{
			Email:      "pending@example.com",
			OnResponse: func(r *contacts.ResendConfirmationResponse) { resp = r },
		})
		require.NoError(t, err)
		assert.True(t, resp.Queued)

		msg := mailer.waitForEmail(t)
		assert.Equal(t, "pending@example.com", msg.To)

		claims, err := tokens.Decode(msg.Token, contacts.ScopeEmailConfirm)
		require.NoError(t, err)
		assert.Equal(t, "pending@example.com", claims.Subject())
	})
}
