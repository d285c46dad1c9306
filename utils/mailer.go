package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/cppla/eduboard/config"
)

// MailMessage is a plain text notification.
type MailMessage struct {
	To          string
	Subject     string
	Body        string
	ReplyTo     string
	ReplyToName string
}

// Mailer delivers transactional email through a relay.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailer builds the configured relay.
func NewMailer(cfg config.AppConfig) Mailer {
	fromName := cfg.MailFromName
	if fromName == "" {
		fromName = cfg.SiteName
	}
	if cfg.MailProvider == "sendgrid" {
		return &SendGridMailer{key: cfg.SendGridAPIKey, from: sgmail.NewEmail(fromName, cfg.MailFrom)}
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		useTLS:   cfg.SMTPTLS,
		from:     cfg.MailFrom,
		fromName: fromName,
	}
}

// SendGridMailer sends through the SendGrid v3 API.
type SendGridMailer struct {
	key  string
	from *sgmail.Email
}

func (m *SendGridMailer) Send(ctx context.Context, msg MailMessage) error {
	if m.key == "" {
		return errors.New("sendgrid not configured")
	}
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", msg.To))

	message := sgmail.NewV3Mail()
	message.SetFrom(m.from)
	message.Subject = msg.Subject
	message.AddPersonalizations(p)
	message.AddContent(sgmail.NewContent("text/plain", msg.Body))
	if msg.ReplyTo != "" {
		message.SetReplyTo(sgmail.NewEmail(msg.ReplyToName, msg.ReplyTo))
	}
	resp, err := sendgrid.NewSendClient(m.key).SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// SMTPMailer sends plain text email, upgrading with STARTTLS when enabled.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	from     string
	fromName string
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if m.host == "" || m.from == "" {
		return errors.New("smtp not configured")
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.BEncoding.Encode("UTF-8", m.fromName), m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s <%s>\r\n", mime.BEncoding.Encode("UTF-8", msg.ReplyToName), msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body)

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	// ensure we don't hang forever
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if m.useTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
				return err
			}
		}
	}
	if m.username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
			return err
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write([]byte(b.String())); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}
