// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authentic Contributors

// Package notify delivers templated emails for the credential lifecycle.
package notify

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
	"github.com/samber/oops"

	"github.com/authentic-auth/authentic/internal/auth"
)

// Notification results recorded by a Recorder.
const (
	ResultSent   = "sent"
	ResultLogged = "logged"
	ResultFailed = "failed"
)

// Message is a composed email.
type Message struct {
	FromAddress string
	FromName    string
	To          string
	Subject     string
	Body        string
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers messages over SMTPS.
type SMTPSender struct {
	client *goemail.SMTP
}

// Send implements Sender.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	m := goemail.NewMessage(msg.FromAddress, msg.Subject, msg.Body)
	m.SetName(msg.FromName)
	m.AddTo(msg.To)
	return s.client.Send(m) //nolint:wrapcheck // wrapped by Mailer.Notify
}

// Recorder counts notification attempts.
type Recorder interface {
	RecordNotification(kind, result string)
}

// SMTPConfig holds SMTP delivery settings. Delivery is disabled when host,
// user or password is empty.
type SMTPConfig struct {
	Host       string
	User       string
	Password   string
	From       string
	SkipVerify bool
}

// Enabled reports whether enough settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

// Mailer implements auth.Notifier. With no Sender it logs each message
// instead of delivering it.
type Mailer struct {
	sender      Sender
	fromAddress string
	fromName    string
	recorder    Recorder
	logger      *slog.Logger
}

// Compile-time interface check.
var _ auth.Notifier = (*Mailer)(nil)

// NewMailer creates a Mailer. sender may be nil to disable delivery;
// recorder may be nil.
func NewMailer(sender Sender, from string, recorder Recorder, logger *slog.Logger) (*Mailer, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}

	m := &Mailer{sender: sender, recorder: recorder, logger: logger}
	if sender != nil {
		addr, err := mail.ParseAddress(from)
		if err != nil {
			return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("from", from).Wrap(err)
		}
		m.fromAddress = addr.Address
		m.fromName = addr.Name
	}
	return m, nil
}

// NewSMTPMailer creates a Mailer from SMTP settings. When the settings
// are incomplete the Mailer only logs.
func NewSMTPMailer(cfg SMTPConfig, recorder Recorder, logger *slog.Logger) (*Mailer, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if !cfg.Enabled() {
		logger.Info("mail delivery disabled")
		return NewMailer(nil, "", recorder, logger)
	}

	u := &url.URL{
		Scheme: "smtps",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host,
	}

	//nolint:gosec // G402: skip_verify is an explicit operator choice for test relays
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.SkipVerify}
	client, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}

	logger.Info("mail delivery enabled", "host", cfg.Host, "user", cfg.User)
	return NewMailer(&SMTPSender{client: client}, cfg.From, recorder, logger)
}

// Enabled reports whether the Mailer delivers mail.
func (m *Mailer) Enabled() bool {
	return m.sender != nil
}

// Notify renders n and sends it, or logs it when delivery is disabled.
func (m *Mailer) Notify(ctx context.Context, n auth.Notification) error {
	kind := string(n.Kind)

	subject, body, err := Render(n)
	if err != nil {
		m.record(kind, ResultFailed)
		return err
	}

	if m.sender == nil {
		m.logger.InfoContext(ctx, "mail delivery disabled, message not sent",
			"template", kind, "to", n.To, "subject", subject)
		m.logger.DebugContext(ctx, "undelivered message body", "template", kind, "body", body)
		m.record(kind, ResultLogged)
		return nil
	}

	msg := Message{
		FromAddress: m.fromAddress,
		FromName:    m.fromName,
		To:          n.To,
		Subject:     subject,
		Body:        body,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		m.record(kind, ResultFailed)
		return oops.Code("NOTIFY_SEND_FAILED").
			With("template", kind).
			With("to", n.To).
			Wrap(err)
	}

	m.logger.InfoContext(ctx, "notification sent", "template", kind, "to", n.To)
	m.record(kind, ResultSent)
	return nil
}

func (m *Mailer) record(kind, result string) {
	if m.recorder != nil {
		m.recorder.RecordNotification(kind, result)
	}
}
