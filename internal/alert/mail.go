package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go-watchdog/internal/config"
	"go-watchdog/internal/models"
)

// Mailer delivers one message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

const defaultSendTimeout = 30 * time.Second

type SMTPMailer struct {
	Host, Port, User, Pass, From string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		Host: cfg.Host,
		Port: strconv.Itoa(cfg.Port),
		User: cfg.Username,
		Pass: cfg.Password,
		From: cfg.From,
	}
}

func (e *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("refusing header with line break")
	}

	var auth smtp.Auth
	if e.User != "" {
		auth = smtp.PlainAuth("", e.User, e.Pass, e.Host)
	}
	msg := []byte("From: " + e.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + time.Now().Format(time.RFC1123Z) + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	return e.deliver(ctx, to, msg, auth)
}

// deliver runs one SMTP transaction. The connection carries ctx's deadline
// and is closed if ctx ends first, so a stalled server cannot hold Send.
func (e *SMTPMailer) deliver(ctx context.Context, to string, msg []byte, auth smtp.Auth) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultSendTimeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(e.Host, e.Port))
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set smtp deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		return e.wrap(ctx, "greeting", err)
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.Host}); err != nil {
			return e.wrap(ctx, "starttls", err)
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return e.wrap(ctx, "auth", err)
			}
		}
	}
	if err := c.Mail(e.From); err != nil {
		return e.wrap(ctx, "mail from", err)
	}
	if err := c.Rcpt(to); err != nil {
		return e.wrap(ctx, "rcpt to", err)
	}
	w, err := c.Data()
	if err != nil {
		return e.wrap(ctx, "data", err)
	}
	if _, err := w.Write(msg); err != nil {
		return e.wrap(ctx, "write body", err)
	}
	if err := w.Close(); err != nil {
		return e.wrap(ctx, "end body", err)
	}
	return c.Quit()
}

func (e *SMTPMailer) wrap(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("smtp %s: %w", step, ctxErr)
	}
	return fmt.Errorf("smtp %s: %w", step, err)
}

// DiscardMailer is used when email delivery is disabled.
type DiscardMailer struct{}

func (DiscardMailer) Send(context.Context, string, string, string) error { return nil }

// Compose renders the subject and plain-text body of a notification.
func Compose(n models.Notification) (subject, body string) {
	switch n.Kind {
	case models.NotifyOffline:
		subject = fmt.Sprintf("Watchdog %q is offline", n.Name)
		body = fmt.Sprintf("Watchdog %q failed %d consecutive checks.\n\nLast result: %s\nTime: %s\n",
			n.Name, n.Threshold, n.Note, n.At.UTC().Format(time.RFC1123))
	default:
		subject = fmt.Sprintf("Watchdog %q is back online", n.Name)
		body = fmt.Sprintf("Watchdog %q recovered.\n\nLast result: %s\nTime: %s\n",
			n.Name, n.Note, n.At.UTC().Format(time.RFC1123))
	}
	return subject, body
}
