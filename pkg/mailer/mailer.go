// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Message is one outgoing email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	BodyText string
	BodyHTML string
}

// Mailer delivers messages through a single SMTP relay.
type Mailer struct {
	cfg    Config
	client *mail.Client
}

// New creates an SMTP mailer. It does not dial until Send.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{cfg: cfg, client: c}, nil
}

// Build renders m into a go-mail message with the configured sender.
func Build(from Config, m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(from.FromName, from.FromAddress); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.AddToFormat(m.ToName, m.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.BodyText)
	if m.BodyHTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.BodyHTML)
	}
	return msg, nil
}

// Send delivers one message.
func (s *Mailer) Send(ctx context.Context, m Message) error {
	msg, err := Build(s.cfg, m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
