package contacts_test

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contacts "github.com/goliatone/go-contacts"
)

func TestUsersRegisterDefaults(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)
	ctx := context.Background()

	user, err := users.Register(ctx, &contacts.User{
		Username:     "pepe",
		Email:        "pepe@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "", user.ID.String())
	assert.Contains(t, user.Avatar, "gravatar.com/avatar/")
	assert.False(t, user.Confirmed)

	// The id derives from the email, so re-registering the same address
	// can never mint a second identity.
	again, err := users.Register(ctx, &contacts.User{
		Username:     "pepe2",
		Email:        "pepe@example.com",
		PasswordHash: "hash",
	})
	assert.Error(t, err)
	assert.Nil(t, again)
}

func TestUsersGetByEmail(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)
	ctx := context.Background()

	registerUser(t, users, "found@example.com", "password123", true)

	user, err := users.GetByEmail(ctx, "found@example.com")
	require.NoError(t, err)
	assert.Equal(t, "found@example.com", user.Email)
	assert.True(t, user.Confirmed)

	_, err = users.GetByEmail(ctx, "missing@example.com")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersStoreRefreshToken(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerUser(t, users, "user@example.com", "password123", true)

	token := "refresh-token-value"
	require.NoError(t, users.StoreRefreshToken(ctx, user.ID, &token))

	stored, err := users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, token, *stored.RefreshToken)

	// nil clears the stored value.
	require.NoError(t, users.StoreRefreshToken(ctx, user.ID, nil))

	stored, err = users.GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Nil(t, stored.RefreshToken)
}

func TestUsersStoreRefreshTokenUnknownID(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)

	token := "whatever"
	err := users.StoreRefreshToken(context.Background(), newUUID(t), &token)
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersMarkConfirmed(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)
	ctx := context.Background()

	registerUser(t, users, "user@example.com", "password123", false)

	require.NoError(t, users.MarkConfirmed(ctx, "user@example.com"))

	user, err := users.GetByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, user.Confirmed)

	// Confirming twice is a no-op, not an error.
	require.NoError(t, users.MarkConfirmed(ctx, "user@example.com"))

	err = users.MarkConfirmed(ctx, "missing@example.com")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersUpdateAvatar(t *testing.T) {
	db := setupTestDB(t)
	users := contacts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerUser(t, users, "user@example.com", "password123", true)

	updated, err := users.UpdateAvatar(ctx, user.ID, "https://example.com/custom.png")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/custom.png", updated.Avatar)
}
