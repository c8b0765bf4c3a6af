package contacts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ResendConfirmationMessage struct {
	Email      string `json:"email"`
	OnResponse func(r *ResendConfirmationResponse)
}

func (e ResendConfirmationMessage) Type() string { return "account.resend_confirmation" }

// ResendConfirmationResponse reports what actually happened. Transports
// should collapse every outcome into the same neutral reply so the endpoint
// cannot be used to probe which emails have accounts.
type ResendConfirmationResponse struct {
	Queued           bool `json:"queued"`
	AlreadyConfirmed bool `json:"already_confirmed"`
	Found            bool `json:"found"`
}

type ResendConfirmationHandler struct {
	repo   RepositoryManager
	tokens TokenService
	mailer Mailer
	cfg    Config
	logger Logger
}

func NewResendConfirmationHandler(repo RepositoryManager, tokens TokenService, mailer Mailer, cfg Config, logger Logger) *ResendConfirmationHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &ResendConfirmationHandler{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}
}

func (h *ResendConfirmationHandler) Execute(ctx context.Context, event ResendConfirmationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during confirmation resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendConfirmationHandler) execute(ctx context.Context, event ResendConfirmationMessage) error {
	resp := &ResendConfirmationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// Unknown email is part of the expected flow, not an error.
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for confirmation resend")
	}

	resp.Found = true

	if user.Confirmed {
		resp.AlreadyConfirmed = true
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	token, err := h.tokens.Issue(user.Email, ScopeEmailConfirm, h.cfg.GetConfirmationTokenTTL())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	email := ConfirmationEmail{
		To:       user.Email,
		Username: user.Username,
		Token:    token,
		BaseURL:  h.cfg.GetBaseURL(),
	}

	go func() {
		sendCtx, sendCancel := context.WithTimeout(context.Background(), time.Second*30)
		defer sendCancel()

		if err := h.mailer.SendConfirmation(sendCtx, email); err != nil {
			h.logger.Error("failed to resend confirmation email", "email", user.Email, "error", err)
		}
	}()

	resp.Queued = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
