package model

import "time"

// ParsedMessage is a MIME message pulled from the mailbox. Every header field is
// optional; a message without MessageID or From is skipped by the correlator.
type ParsedMessage struct {
	MessageID  string
	InReplyTo  string
	References []string
	From       []string
	To         []string
	Subject    string
	Text       string
	HTML       string
	Date       time.Time
}

// ThreadIDs returns In-Reply-To followed by References, without blanks or repeats.
func (m *ParsedMessage) ThreadIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	add(m.InReplyTo)
	for _, ref := range m.References {
		add(ref)
	}
	return ids
}

// FromAddress returns the first sender address, or "".
func (m *ParsedMessage) FromAddress() string {
	if len(m.From) == 0 {
		return ""
	}
	return m.From[0]
}

// ToAddress returns the first recipient address, or "".
func (m *ParsedMessage) ToAddress() string {
	if len(m.To) == 0 {
		return ""
	}
	return m.To[0]
}
