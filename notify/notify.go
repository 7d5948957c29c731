// Package notify delivers account lifecycle email over SMTP. Bodies are
// rendered from embedded templates; a failed send is returned to the
// caller, never swallowed.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.django
var templatesFS embed.FS

const (
	subjectVerification  = "Verify your email address"
	subjectPasswordReset = "Reset your password"
)

// Config holds SMTP transport settings plus the public base URL used to
// build reset links.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
	BaseURL  string
}

// Validate checks the fields without which no mail can leave.
func (c Config) Validate() error {
	if c.Host == "" {
		return goerrors.New("smtp host is required", goerrors.CategoryValidation)
	}
	if c.From == "" {
		return goerrors.New("smtp from address is required", goerrors.CategoryValidation)
	}
	return nil
}

// SendFunc delivers a built message. The default dials SMTP; tests swap
// it out.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer renders and sends lifecycle email.
type Mailer struct {
	cfg    Config
	engine *django.Engine
	send   SendFunc
}

// NewMailer creates a Mailer and loads the embedded templates.
func NewMailer(cfg Config, opts ...Option) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := django.NewFileSystem(http.FS(templatesFS), ".django")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	m := &Mailer{
		cfg:    cfg,
		engine: engine,
	}
	m.send = m.smtpSend

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Option mutates the Mailer during construction.
type Option func(*Mailer)

// WithSendFunc overrides the delivery function.
func WithSendFunc(send SendFunc) Option {
	return func(m *Mailer) {
		if send != nil {
			m.send = send
		}
	}
}

// SendVerificationCode emails a verification code to a freshly registered
// or still unverified account.
func (m *Mailer) SendVerificationCode(ctx context.Context, email, name, code string) error {
	body, err := m.render("templates/verification_code", map[string]any{
		"name": name,
		"code": code,
	})
	if err != nil {
		return err
	}

	msg, err := m.compose(email, subjectVerification, body)
	if err != nil {
		return err
	}

	return m.send(ctx, msg)
}

// SendPasswordReset emails a reset link carrying the one time token.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, name, token string) error {
	body, err := m.render("templates/password_reset", map[string]any{
		"name":      name,
		"reset_url": m.resetURL(token),
	})
	if err != nil {
		return err
	}

	msg, err := m.compose(email, subjectPasswordReset, body)
	if err != nil {
		return err
	}

	return m.send(ctx, msg)
}

func (m *Mailer) resetURL(token string) string {
	base := strings.TrimSuffix(m.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/auth/reset-password?token=%s", base, url.QueryEscape(token))
}

func (m *Mailer) render(template string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, template, binding); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template")
	}
	return buf.String(), nil
}

func (m *Mailer) compose(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if m.cfg.FromName != "" {
		if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid from address")
		}
	} else {
		if err := msg.From(m.cfg.From); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid from address")
		}
	}

	if err := msg.To(to); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid recipient address")
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

func (m *Mailer) smtpSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
	}

	if m.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// implicit TLS on 465, STARTTLS otherwise
		if m.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create mail client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email")
	}

	return nil
}
