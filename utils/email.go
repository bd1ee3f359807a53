package utils

import (
	"crypto/tls"
	"errors"
	"html"
	"net/smtp"

	"github.com/jordan-wright/email"
)

var ErrSMTPNotConfigured = errors.New("smtp config missing")

type SMTPConfig struct {
	Host        string
	Port        string
	User        string
	Pass        string
	From        string
	ImplicitTLS bool
	StartTLS    bool
}

// Enabled reports whether every field needed to send mail is set.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.User != "" && c.Pass != "" && c.From != ""
}

func welcomeMail(from, to, username string) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = "Welcome to your file vault"
	e.HTML = []byte(`
		<h2>Welcome, ` + html.EscapeString(username) + `</h2>
		<p>Your account is ready. Sign in to start uploading files.</p>
	`)
	return e
}

// SendWelcomeMail greets a newly registered user.
func SendWelcomeMail(cfg SMTPConfig, to, username string) error {
	if !cfg.Enabled() {
		return ErrSMTPNotConfigured
	}
	e := welcomeMail(cfg.From, to, username)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if cfg.ImplicitTLS {
		return e.SendWithTLS(addr, auth, tlsConfig)
	}
	if cfg.StartTLS {
		return e.SendWithStartTLS(addr, auth, tlsConfig)
	}
	return e.Send(addr, auth)
}
