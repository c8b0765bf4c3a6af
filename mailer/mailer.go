package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	goerrors "github.com/goliatone/go-errors"

	contacts "github.com/goliatone/go-contacts"
)

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`Subject: Confirm your email
From: {{.From}}
To: {{.To}}
MIME-Version: 1.0
Content-Type: text/plain; charset="utf-8"

Hi {{.Username}},

Welcome! Confirm your email address by opening the link below:

{{.Link}}

If you did not create an account, you can ignore this message.
`))

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends account emails through a plain SMTP relay.
type SMTPMailer struct {
	cfg Config
}

var _ contacts.Mailer = (*SMTPMailer)(nil)

func New(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendConfirmation renders and delivers the confirmation email. The send is
// synchronous; callers decide whether to run it in the background.
func (m *SMTPMailer) SendConfirmation(ctx context.Context, email contacts.ConfirmationEmail) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before email send")
	}

	body, err := m.render(email)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email.To}, body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver confirmation email")
	}

	return nil
}

func (m *SMTPMailer) render(email contacts.ConfirmationEmail) ([]byte, error) {
	link := strings.TrimRight(email.BaseURL, "/") + "/api/auth/confirm/" + email.Token

	var buf strings.Builder
	err := confirmationTemplate.Execute(&buf, map[string]string{
		"From":     m.cfg.From,
		"To":       email.To,
		"Username": email.Username,
		"Link":     link,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render confirmation email")
	}

	return []byte(buf.String()), nil
}
