package contacts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultContactPageSize caps unbounded list queries.
const DefaultContactPageSize = 50

// DefaultPhoneRegion resolves national numbers that carry no country code.
const DefaultPhoneRegion = "US"

// ContactFilter narrows List results. Zero values mean "no constraint".
type ContactFilter struct {
	Search   string
	Favorite *bool
	Limit    int
	Offset   int
}

// Contacts is the per-user address book store. Every operation takes the
// owner's id and scopes the query to it; there is no cross-user read path.
type Contacts interface {
	repository.Repository[*Contact]

	GetOwned(ctx context.Context, ownerID, contactID uuid.UUID) (*Contact, error)
	List(ctx context.Context, ownerID uuid.UUID, filter ContactFilter) ([]*Contact, int, error)
	CreateOwned(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error)
	UpdateOwned(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error)
	DeleteOwned(ctx context.Context, ownerID, contactID uuid.UUID) error
	SetFavorite(ctx context.Context, ownerID, contactID uuid.UUID, favorite bool) (*Contact, error)
	UpcomingBirthdays(ctx context.Context, ownerID uuid.UUID, days int) ([]*Contact, error)
}

type contactsRepo struct {
	repository.Repository[*Contact]
	db *bun.DB
}

var (
	_ Contacts                        = (*contactsRepo)(nil)
	_ repository.Repository[*Contact] = (*contactsRepo)(nil)
)

func NewContactsRepository(db *bun.DB) Contacts {
	repo := repository.NewRepository[*Contact](db, repository.ModelHandlers[*Contact]{
		NewRecord: func() *Contact { return &Contact{} },
		GetID: func(c *Contact) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Contact, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
	})

	return &contactsRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *contactsRepo) GetOwned(ctx context.Context, ownerID, contactID uuid.UUID) (*Contact, error) {
	record := &Contact{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", contactID).
		Where("?TableAlias.user_id = ?", ownerID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id":      contactID.String(),
					"user_id": ownerID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *contactsRepo) List(ctx context.Context, ownerID uuid.UUID, filter ContactFilter) ([]*Contact, int, error) {
	records := []*Contact{}

	q := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", ownerID)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				WhereOr("LOWER(?TableAlias.first_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.last_name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern)
		})
	}

	if filter.Favorite != nil {
		q = q.Where("?TableAlias.favorite = ?", *filter.Favorite)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultContactPageSize
	}

	total, err := q.
		Order("last_name ASC", "first_name ASC").
		Limit(limit).
		Offset(filter.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *contactsRepo) CreateOwned(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error) {
	if err := prepareContact(record); err != nil {
		return nil, err
	}

	record.UserID = ownerID
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	return r.Repository.Create(ctx, record)
}

func (r *contactsRepo) UpdateOwned(ctx context.Context, ownerID uuid.UUID, record *Contact) (*Contact, error) {
	// Ownership check first so a cross-user id reads as not-found rather
	// than silently updating zero rows.
	existing, err := r.GetOwned(ctx, ownerID, record.ID)
	if err != nil {
		return nil, err
	}

	if err := prepareContact(record); err != nil {
		return nil, err
	}

	record.UserID = existing.UserID

	return r.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
}

func (r *contactsRepo) DeleteOwned(ctx context.Context, ownerID, contactID uuid.UUID) error {
	record, err := r.GetOwned(ctx, ownerID, contactID)
	if err != nil {
		return err
	}

	_, err = r.db.NewDelete().
		Model(record).
		WherePK().
		Exec(ctx)

	return err
}

func (r *contactsRepo) SetFavorite(ctx context.Context, ownerID, contactID uuid.UUID, favorite bool) (*Contact, error) {
	record, err := r.GetOwned(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	record.Favorite = favorite

	return r.Repository.Update(ctx, record, repository.UpdateByID(record.ID.String()))
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls within
// the next days days. The year-agnostic comparison happens here rather than
// in SQL so the wrap across December 31 works the same on every dialect.
func (r *contactsRepo) UpcomingBirthdays(ctx context.Context, ownerID uuid.UUID, days int) ([]*Contact, error) {
	if days <= 0 {
		days = 7
	}

	records := []*Contact{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", ownerID).
		Where("?TableAlias.birthday IS NOT NULL").
		Order("last_name ASC", "first_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	upcoming := make([]*Contact, 0, len(records))
	for _, record := range records {
		if record.Birthday == nil {
			continue
		}
		if daysUntilBirthday(today, *record.Birthday) <= days {
			upcoming = append(upcoming, record)
		}
	}

	return upcoming, nil
}

// daysUntilBirthday computes how many days from today the next occurrence of
// the birthday lands. Feb 29 birthdays observe Mar 1 in non-leap years.
func daysUntilBirthday(today time.Time, birthday time.Time) int {
	year, month, day := today.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	next := time.Date(year, birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(start) {
		next = time.Date(year+1, birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	}

	return int(next.Sub(start).Hours() / 24)
}

func prepareContact(record *Contact) error {
	if record == nil {
		return goerrors.New("contact record must not be nil", goerrors.CategoryBadInput)
	}

	if record.Phone != "" {
		normalized, err := NormalizePhone(record.Phone)
		if err != nil {
			return err
		}
		record.Phone = normalized
	}

	return nil
}

// NormalizePhone parses and validates a phone number and returns it in E.164
// form. Numbers without a country code are resolved against
// DefaultPhoneRegion.
func NormalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(strings.TrimSpace(raw), DefaultPhoneRegion)
	if err != nil {
		return "", goerrors.Wrap(err, ErrVerification.Category, "invalid phone number").
			WithTextCode(ErrVerification.TextCode)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid phone number", ErrVerification.Category).
			WithTextCode(ErrVerification.TextCode)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
