package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	// TLS selects implicit TLS; otherwise STARTTLS is attempted when offered.
	TLS         bool
	DialTimeout time.Duration
}

// SMTPTransport keeps one authenticated connection and reuses it across sends.
type SMTPTransport struct {
	cfg SMTPConfig

	mu     sync.Mutex
	client *smtp.Client
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) connect() (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)
	tlsConfig := &tls.Config{ServerName: t.cfg.Host}
	dialer := &net.Dialer{Timeout: t.cfg.DialTimeout}

	var conn net.Conn
	var err error
	if t.cfg.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}
	if !t.cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}
	if t.cfg.Username != "" {
		auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP auth: %w", err)
		}
	}
	return client, nil
}

// Deliver sends on the shared connection, reconnecting once if it went stale.
func (t *SMTPTransport) Deliver(ctx context.Context, env Envelope) (Delivery, error) {
	from, err := mail.ParseAddress(env.From)
	if err != nil {
		return Delivery{}, fmt.Errorf("parse sender: %w", err)
	}
	to, err := mail.ParseAddress(env.To)
	if err != nil {
		return Delivery{}, fmt.Errorf("parse recipient: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil && t.client.Noop() != nil {
		t.client.Close()
		t.client = nil
	}
	if t.client == nil {
		if t.client, err = t.connect(); err != nil {
			return Delivery{}, err
		}
	}

	if err := sendVia(t.client, from.Address, to.Address, env.Raw); err != nil {
		// the server may have left the transaction half open
		t.client.Close()
		t.client = nil
		return Delivery{}, err
	}
	return Delivery{}, nil
}

func sendVia(client *smtp.Client, from, to string, raw []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}
	return nil
}

func (t *SMTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Quit()
	t.client = nil
	return err
}
