// Package mail delivers password reset messages
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

// NewMailer picks the mailer configured in the [mail] section.
func NewMailer(cfg common.MailConfig, logger *common.Logger) (interfaces.Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		return NewLogMailer(logger), nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("mail.smtp.host is required for the smtp driver")
		}
		return NewSMTPMailer(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *common.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *common.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the envelope at info. The body can carry a live reset link, so
// it is only written at debug level.
func (m *LogMailer) Send(_ context.Context, msg models.Mail) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("Mail (log driver)")
	m.logger.Debug().
		Str("to", msg.To).
		Str("body", msg.Body).
		Msg("Mail body (log driver)")
	return nil
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	addr   string
	host   string
	from   string
	auth   smtp.Auth
	logger *common.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
}

// NewSMTPMailer creates an SMTPMailer. PLAIN auth is used when a username is set.
func NewSMTPMailer(cfg common.MailConfig, logger *common.Logger) *SMTPMailer {
	port := cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	m := &SMTPMailer{
		addr:   net.JoinHostPort(cfg.SMTP.Host, strconv.Itoa(port)),
		host:   cfg.SMTP.Host,
		from:   cfg.From,
		logger: logger,
		send:   smtp.SendMail,
		now:    time.Now,
	}
	if cfg.SMTP.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return m
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

func (m *SMTPMailer) compose(msg models.Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sanitizeHeader(m.from))
	fmt.Fprintf(&b, "To: %s\r\n", sanitizeHeader(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// Send delivers msg. net/smtp has no context support, so ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg models.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.compose(msg)); err != nil {
		m.logger.Error().Err(err).Str("to", msg.To).Msg("Failed to send mail")
		return fmt.Errorf("failed to send mail: %w", err)
	}
	m.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Mail sent")
	return nil
}

var (
	_ interfaces.Mailer = (*LogMailer)(nil)
	_ interfaces.Mailer = (*SMTPMailer)(nil)
)
