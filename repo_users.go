package contacts

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var MarkUserConfirmedSQL = `UPDATE "users" AS "usr"
SET
	"confirmed" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."email" = ?
) RETURNING *;`

var StoreRefreshTokenSQL = `UPDATE "users" AS "usr"
SET
	"refresh_token" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the durable account directory. GetByEmail and the write
// operations below are the only entry points the session and workflow
// layers use; the embedded Repository carries the generic CRUD surface.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	StoreRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token *string) error

	MarkConfirmed(ctx context.Context, email string) error
	MarkConfirmedTx(ctx context.Context, tx bun.IDB, email string) error

	UpdateAvatar(ctx context.Context, id uuid.UUID, avatar string) (*User, error)
	UpdateAvatarTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatar string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) StoreRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	return a.StoreRefreshTokenTx(ctx, a.db, id, token)
}

// StoreRefreshTokenTx persists the current refresh token, or clears it when
// token is nil. Raw SQL so a nil value writes NULL instead of being dropped
// by the ORM's zero-value handling.
func (a *users) StoreRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token *string) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreRefreshTokenSQL, token, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) MarkConfirmed(ctx context.Context, email string) error {
	return a.MarkConfirmedTx(ctx, a.db, email)
}

func (a *users) MarkConfirmedTx(ctx context.Context, tx bun.IDB, email string) error {
	res, err := a.Repository.RawTx(ctx, tx, MarkUserConfirmedSQL, email)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"email": email,
			})
	}

	return nil
}

func (a *users) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar string) (*User, error) {
	return a.UpdateAvatarTx(ctx, a.db, id, avatar)
}

func (a *users) UpdateAvatarTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatar string) (*User, error) {
	record := &User{
		ID:     id,
		Avatar: avatar,
	}
	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		// Deterministic from the unique email, so retried signups collide
		// on the primary key too instead of minting a second identity.
		if id, err := hashid.NewUUID(record.Email); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}

	if record.Avatar == "" {
		record.Avatar = GravatarURL(record.Email)
	}
}
