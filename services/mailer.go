package services

import (
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Mailer sends transactional email
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer delivers email through an SMTP relay
type SMTPMailer struct {
	cfg    MailConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg MailConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Enabled reports whether an SMTP host is configured
func (m *SMTPMailer) Enabled() bool {
	return m != nil && m.cfg.Host != ""
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if !m.Enabled() {
		return fmt.Errorf("%w: smtp is not configured", ErrUpstream)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: send mail: %v", ErrUpstream, err)
	}
	return nil
}

func waitlistConfirmation(name string) string {
	greeting := "Hi there,"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s,", html.EscapeString(name))
	}
	return fmt.Sprintf(`<p>%s</p>
<p>Thanks for joining the PrepMate waitlist. We'll email you as soon as your spot opens up.</p>
<p>The PrepMate team</p>`, greeting)
}

// sendAsync delivers in the background; failures are only logged
func sendAsync(m Mailer, to, subject, body string) {
	if m == nil {
		return
	}
	go func() {
		if err := m.Send(to, subject, body); err != nil {
			slog.Warn("Failed to send email", "error", err, "subject", subject)
			return
		}
		slog.Info("Email sent", "subject", subject)
	}()
}
