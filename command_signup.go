package contacts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	OnCreated func(u *User)
}

func (e SignupMessage) Type() string { return "account.signup" }

// SignupHandler creates an unconfirmed account and queues the confirmation
// email. The account write commits regardless of what happens to the email;
// the resend operation covers delivery failures.
type SignupHandler struct {
	repo   RepositoryManager
	tokens TokenService
	mailer Mailer
	cfg    Config
	logger Logger
}

func NewSignupHandler(repo RepositoryManager, tokens TokenService, mailer Mailer, cfg Config, logger Logger) *SignupHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &SignupHandler{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrAccountExists
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Username = getUsername(event.Username, event.Email)
		user.Confirmed = false

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
				WithTextCode(TextCodeAccountExists)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "signup transaction failed")
	}

	h.queueConfirmationEmail(user)

	if event.OnCreated != nil {
		event.OnCreated(user)
	}

	return nil
}

// queueConfirmationEmail issues the confirmation token and sends it in the
// background. The request that triggered it never waits on SMTP.
func (h *SignupHandler) queueConfirmationEmail(user *User) {
	token, err := h.tokens.Issue(user.Email, ScopeEmailConfirm, h.cfg.GetConfirmationTokenTTL())
	if err != nil {
		h.logger.Error("failed to issue confirmation token", "email", user.Email, "error", err)
		return
	}

	email := ConfirmationEmail{
		To:       user.Email,
		Username: user.Username,
		Token:    token,
		BaseURL:  h.cfg.GetBaseURL(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		if err := h.mailer.SendConfirmation(ctx, email); err != nil {
			h.logger.Error("failed to send confirmation email", "email", user.Email, "error", err)
		}
	}()
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
