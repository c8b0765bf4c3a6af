package contacts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	Token      string `json:"token"`
	OnResponse func(r *ConfirmEmailResponse)
}

func (e ConfirmEmailMessage) Type() string { return "account.confirm_email" }

type ConfirmEmailResponse struct {
	Email            string `json:"email"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
}

// ConfirmEmailHandler flips the confirmed flag for the account named by a
// confirmation token. Confirming an already confirmed account is a success;
// the link in the email may be clicked more than once.
type ConfirmEmailHandler struct {
	repo   RepositoryManager
	tokens TokenService
	cache  *IdentityCache
}

func NewConfirmEmailHandler(repo RepositoryManager, tokens TokenService, cache *IdentityCache) *ConfirmEmailHandler {
	return &ConfirmEmailHandler{
		repo:   repo,
		tokens: tokens,
		cache:  cache,
	}
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email confirmation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	claims, err := h.tokens.Decode(event.Token, ScopeEmailConfirm)
	if err != nil {
		// Expired, tampered, or wrong-scope tokens all read the same to the
		// person clicking the link.
		return goerrors.Wrap(err, ErrVerification.Category, ErrVerification.Message).
			WithTextCode(ErrVerification.TextCode)
	}

	email := claims.Subject()
	resp := &ConfirmEmailResponse{Email: email}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrVerification
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for confirmation")
		}

		if user.Confirmed {
			resp.AlreadyConfirmed = true
			return nil
		}

		return h.repo.Users().MarkConfirmedTx(ctx, tx, email)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email confirmation transaction failed")
	}

	// The cached snapshot still says unconfirmed; drop it rather than wait
	// out the TTL.
	if h.cache != nil && !resp.AlreadyConfirmed {
		h.cache.Drop(ctx, email)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
