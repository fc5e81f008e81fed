package notify

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// EmailConfig holds the digest mail relay configuration.
type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host" json:"smtp_host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"smtp_port" json:"smtp_port" env:"SMTP_PORT"` // "465" (TLS) or "587" (STARTTLS)
	From     string `yaml:"from" json:"from" env:"SMTP_FROM"`
	Password string `yaml:"password" json:"password" env:"SMTP_PASSWORD"`
	To       string `yaml:"to" json:"to" env:"SMTP_TO"` // comma-separated
}

// Recipients returns the trimmed, non-empty addresses in To.
func (c EmailConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// EmailNotifier mails the digest as plain text to a fixed recipient list.
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates an email relay sink.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	return &EmailNotifier{cfg: cfg}
}

func (e *EmailNotifier) Channel() Channel { return ChannelEmail }

// Send mails msg to every configured recipient in one SMTP transaction.
func (e *EmailNotifier) Send(ctx context.Context, msg Message) error {
	recipients := e.cfg.Recipients()
	if len(recipients) == 0 {
		return fmt.Errorf("email: no recipients configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.SMTPHost, e.cfg.SMTPPort)
	var client *smtp.Client
	var err error
	if e.cfg.SMTPPort == "465" {
		client, err = dialTLS(addr, e.cfg.SMTPHost)
	} else {
		client, err = dialSTARTTLS(addr, e.cfg.SMTPHost)
	}
	if err != nil {
		return fmt.Errorf("SMTP connect: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}
	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, to := range recipients {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write([]byte(buildEmailBody(e.cfg.From, recipients, msg))); err != nil {
		return fmt.Errorf("SMTP write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close data: %w", err)
	}
	return client.Quit()
}

func dialTLS(addr, host string) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, fmt.Errorf("TLS dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP client: %w", err)
	}
	return client, nil
}

func dialSTARTTLS(addr, host string) (*smtp.Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP client: %w", err)
	}
	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		client.Close()
		return nil, fmt.Errorf("STARTTLS: %w", err)
	}
	return client, nil
}

// encodeRFC2047 encodes a UTF-8 header value as RFC 2047 base64.
func encodeRFC2047(s string) string {
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}

func buildEmailBody(from string, to []string, msg Message) string {
	body := msg.Body
	if body == "" {
		body = EmptyBodyPlaceholder
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s <%s>\r\n", encodeRFC2047("DigestBot"), from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", encodeRFC2047(msg.Title))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: base64\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(base64.StdEncoding.EncodeToString([]byte(body)))
	return sb.String()
}
