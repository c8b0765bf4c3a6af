package mailer

import (
	"context"
	"strings"

	contacts "github.com/goliatone/go-contacts"
)

// LogMailer writes confirmation links to the log instead of sending them.
// Used in development when no SMTP relay is configured.
type LogMailer struct {
	Logger contacts.Logger
}

var _ contacts.Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendConfirmation(_ context.Context, email contacts.ConfirmationEmail) error {
	link := strings.TrimRight(email.BaseURL, "/") + "/api/auth/confirm/" + email.Token
	if m.Logger != nil {
		m.Logger.Info("confirmation email (log only)", "to", email.To, "link", link)
	}
	return nil
}
