package mailer

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// Email is one outgoing message before composition.
type Email struct {
	To         string
	Subject    string
	HTML       string
	Text       string
	SenderName string
	// InReplyTo threads the message under an earlier message id.
	InReplyTo string
}

// Result is the tagged outcome of a send. Failures are carried in Error, never returned.
type Result struct {
	Success    bool   `json:"success"`
	MessageID  string `json:"message_id,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Envelope is a composed message handed to a transport.
type Envelope struct {
	From      string
	To        string
	MessageID string
	Raw       []byte
}

// Delivery is what a transport reports after accepting a message.
type Delivery struct {
	// MessageID overrides the composed id when the provider rewrites it.
	MessageID  string
	PreviewURL string
}

// Transport delivers composed messages. Implementations must be safe for concurrent use.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) (Delivery, error)
	Close() error
}

// Sender is the contract the orchestrator depends on.
type Sender interface {
	SendEmail(ctx context.Context, email Email) Result
}

// Gateway owns one lazily created transport for the life of the process.
type Gateway struct {
	from string
	dial func(ctx context.Context) (Transport, error)

	mu        sync.Mutex
	transport Transport
}

// NewGateway builds a gateway whose transport is opened on first send.
func NewGateway(from string, dial func(ctx context.Context) (Transport, error)) *Gateway {
	return &Gateway{from: from, dial: dial}
}

// FromConfig picks the transport named by EMAIL_TRANSPORT.
func FromConfig(cfg config.EmailConfig) (*Gateway, error) {
	var dial func(ctx context.Context) (Transport, error)
	switch strings.ToLower(cfg.Transport) {
	case "smtp":
		dial = func(ctx context.Context) (Transport, error) {
			return NewSMTPTransport(SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUser,
				Password: cfg.SMTPPass,
				TLS:      cfg.SMTPSecure,
			}), nil
		}
	case "ses":
		dial = func(ctx context.Context) (Transport, error) {
			return NewSESTransport(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey)
		}
	case "file", "":
		dial = func(ctx context.Context) (Transport, error) {
			return NewFileTransport(cfg.OutboxDir)
		}
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Transport)
	}
	return NewGateway(cfg.From, dial), nil
}

func (g *Gateway) getTransport(ctx context.Context) (Transport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport != nil {
		return g.transport, nil
	}
	t, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	g.transport = t
	return t, nil
}

// SendEmail composes and delivers one message.
func (g *Gateway) SendEmail(ctx context.Context, email Email) Result {
	if strings.TrimSpace(email.To) == "" {
		return Result{Error: "recipient address is empty"}
	}
	if email.Text == "" {
		email.Text = TextFromHTML(email.HTML)
	}
	if email.HTML == "" {
		email.HTML = htmlFromText(email.Text)
	}

	raw, messageID, err := Compose(g.from, email)
	if err != nil {
		return Result{Error: fmt.Sprintf("compose message: %v", err)}
	}

	t, err := g.getTransport(ctx)
	if err != nil {
		logger.Error("email transport unavailable", "error", err)
		return Result{Error: fmt.Sprintf("transport unavailable: %v", err)}
	}

	delivery, err := t.Deliver(ctx, Envelope{From: g.from, To: email.To, MessageID: messageID, Raw: raw})
	if err != nil {
		logger.Warn("email delivery failed", "to", email.To, "error", err)
		return Result{Error: err.Error()}
	}
	if delivery.MessageID != "" {
		messageID = delivery.MessageID
	}

	logger.Info("email sent", "to", email.To, "message_id", messageID)
	return Result{Success: true, MessageID: messageID, PreviewURL: delivery.PreviewURL}
}

// Close releases the transport if one was opened.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transport == nil {
		return nil
	}
	err := g.transport.Close()
	g.transport = nil
	return err
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>`)
)

// TextFromHTML renders a rough plain-text version of an HTML body.
func TextFromHTML(s string) string {
	s = breakPattern.ReplaceAllString(s, "\n")
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

func htmlFromText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}

var _ Sender = (*Gateway)(nil)
