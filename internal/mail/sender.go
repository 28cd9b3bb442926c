package mail

import (
	"context"
	"crypto/tls"
	"errors"

	"gopkg.in/gomail.v2"

	"github.com/iliyamo/mensa-reservation/internal/config"
)

// ErrNotConfigured is returned by a sender without SMTP credentials.
var ErrNotConfigured = errors.New("mail: smtp not configured")

// Sender delivers one rendered e-mail.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// SMTPSender sends through an SMTP relay with gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	// MAIL_USE_TLS=false is for local relays with self-signed certificates
	if !cfg.UseTLS {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	} else {
		d.TLSConfig = &tls.Config{ServerName: cfg.Server}
	}
	return &SMTPSender{dialer: d, from: cfg.Sender}
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if s.from == "" || s.dialer.Host == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.compose(e)
	return s.dialer.DialAndSend(m)
}

func (s *SMTPSender) compose(e Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Text)
	if e.HTML != "" {
		m.AddAlternative("text/html", e.HTML)
	}
	return m
}
