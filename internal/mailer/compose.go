package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// NewMessageID returns a bare id (no angle brackets) scoped to the sender's domain.
func NewMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.TrimSuffix(from[at+1:], ">")
	}
	return uuid.NewString() + "@" + domain
}

// Compose renders email as a multipart/alternative RFC 5322 message and
// returns it with the bare Message-ID it was given.
func Compose(from string, email Email) ([]byte, string, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, "", fmt.Errorf("parse sender %q: %w", from, err)
	}
	if email.SenderName != "" {
		sender.Name = email.SenderName
	}
	to, err := mail.ParseAddress(email.To)
	if err != nil {
		return nil, "", fmt.Errorf("parse recipient: %w", err)
	}

	messageID := NewMessageID(sender.Address)

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{sender})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(email.Subject)
	h.SetMessageID(messageID)
	if parent := strings.Trim(strings.TrimSpace(email.InReplyTo), "<>"); parent != "" {
		h.SetMsgIDList("In-Reply-To", []string{parent})
		h.SetMsgIDList("References", []string{parent})
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, "", err
	}
	if err := writePart(tw, "text/plain", email.Text); err != nil {
		return nil, "", err
	}
	if err := writePart(tw, "text/html", email.HTML); err != nil {
		return nil, "", err
	}
	if err := tw.Close(); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), messageID, nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
