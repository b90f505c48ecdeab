package inbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/unclebandit/outreach-backend/internal/mailer"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// Parse decodes a raw RFC 5322 message. Malformed optional headers are left
// empty rather than failing the whole message.
func Parse(raw []byte) (*model.ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &model.ParsedMessage{}
	msg.MessageID, _ = h.MessageID()
	msg.MessageID = strings.TrimSpace(msg.MessageID)
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		msg.InReplyTo = ids[0]
	}
	msg.References, _ = h.MsgIDList("References")
	msg.From = addresses(h, "From")
	msg.To = addresses(h, "To")
	msg.Subject, _ = h.Subject()
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep whatever was decoded before the broken part
			break
		}
		ih, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := ih.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case contentType == "text/plain" && msg.Text == "":
			msg.Text = string(body)
		case contentType == "text/html" && msg.HTML == "":
			msg.HTML = string(body)
		}
	}
	if msg.Text == "" && msg.HTML != "" {
		msg.Text = mailer.TextFromHTML(msg.HTML)
	}
	return msg, nil
}

func addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.Address != "" {
			out = append(out, strings.ToLower(a.Address))
		}
	}
	return out
}

// sentAt prefers the Date header and falls back to now.
func sentAt(msg *model.ParsedMessage, now time.Time) time.Time {
	if msg.Date.IsZero() {
		return now
	}
	return msg.Date
}
