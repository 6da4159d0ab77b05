package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// ErrMissingCredentials is returned when the SMTP server, username or password is not set.
var ErrMissingCredentials = errors.New("smtp server, username and password are required")

const defaultSMTPPort = 587

// SMTPMailer delivers digests over SMTP with mandatory STARTTLS.
type SMTPMailer struct {
	cfg    config.MailConfig
	send   func(ctx context.Context, msg *mail.Msg) error
	logger *slog.Logger
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer validates credentials and prepares the mailer.
func NewSMTPMailer(cfg config.MailConfig, log *slog.Logger) (*SMTPMailer, error) {
	if cfg.Server == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	m := &SMTPMailer{cfg: cfg, logger: log}
	m.send = m.dialAndSend
	return m, nil
}

// Send builds a multipart HTML message with a plain-text alternative and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, msg ports.MailMessage) error {
	built, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, built); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	m.logger.Debug("mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) buildMessage(msg ports.MailMessage) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, errors.New("mail recipient is empty")
	}

	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("set from %q: %w", m.cfg.From, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetDate()
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		out.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}
	return out, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.Server,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("new smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
