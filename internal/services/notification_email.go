package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/opsledger/backend/internal/config"
)

// Mailer sends one message to a list of recipients.
type Mailer interface {
	Enabled() bool
	Send(to []string, subject, body string) error
}

// EmailService sends mail over SMTP using the process configuration.
type EmailService struct {
	cfg *EmailConfig
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	FromAddr string
}

// NewEmailService builds the SMTP sender from cfg.
func NewEmailService(cfg *config.Config) *EmailService {
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.EmailUsername
	}
	return &EmailService{cfg: &EmailConfig{
		Host:     cfg.SMTPServer,
		Port:     strconv.Itoa(cfg.SMTPPort),
		Username: cfg.EmailUsername,
		Password: cfg.EmailPassword,
		FromAddr: from,
	}}
}

// Enabled is false when no SMTP username is configured; Send is then a
// no-op.
func (s *EmailService) Enabled() bool {
	return s.cfg.Username != "" && s.cfg.Host != ""
}

// Send delivers a plain-text message.
func (s *EmailService) Send(to []string, subject, body string) error {
	if !s.Enabled() {
		return nil
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	msg := buildMessage(s.cfg.FromAddr, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	switch s.cfg.Port {
	case "465":
		return s.sendWithTLS(addr, auth, to, msg)
	case "587", "25":
		return s.sendWithStartTLS(addr, auth, to, msg)
	default:
		return smtp.SendMail(addr, auth, s.cfg.FromAddr, to, msg)
	}
}

func buildMessage(from string, to []string, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", from, strings.Join(to, ", "), subject, body))
}

// sendWithTLS sends email using direct TLS (port 465)
func (s *EmailService) sendWithTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("SMTP client failed: %w", err)
	}
	defer client.Close()
	return s.deliver(client, auth, to, msg)
}

// sendWithStartTLS sends email using STARTTLS (port 587)
func (s *EmailService) sendWithStartTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("HELLO failed: %w", err)
	}
	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}
	return s.deliver(client, auth, to, msg)
}

func (s *EmailService) deliver(client *smtp.Client, auth smtp.Auth, to []string, msg []byte) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}
	if err := client.Mail(s.cfg.FromAddr); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return client.Quit()
}

// splitRecipients parses a comma or semicolon separated address list.
func splitRecipients(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
