// internal/model/outbound_message.go
package model

import "time"

type MessageStatus string

const (
	MessageSent   MessageStatus = "SENT"
	MessageFailed MessageStatus = "FAILED"
)

// OutboundMessage records both sides of a thread. Rows with IsIncoming set are
// replies pulled from the mailbox and point at the outgoing row through ReplyToID.
type OutboundMessage struct {
	ID          int           `db:"id" json:"id"`
	LeadID      int           `db:"lead_id" json:"lead_id"`
	CampaignID  int           `db:"campaign_id" json:"campaign_id"`
	DraftID     *int          `db:"draft_id" json:"draft_id,omitempty"`
	Subject     string        `db:"subject" json:"subject"`
	Body        string        `db:"body" json:"body"`
	Status      MessageStatus `db:"status" json:"status"`
	LastError   string        `db:"last_error" json:"last_error,omitempty"`
	IsIncoming  bool          `db:"is_incoming" json:"is_incoming"`
	MessageID   string        `db:"message_id" json:"message_id,omitempty"`
	InReplyTo   string        `db:"in_reply_to" json:"in_reply_to,omitempty"`
	References  string        `db:"references" json:"references,omitempty"`
	FromAddress string        `db:"from_address" json:"from_address,omitempty"`
	ToAddress   string        `db:"to_address" json:"to_address,omitempty"`
	ReplyToID   *int          `db:"reply_to_id" json:"reply_to_id,omitempty"`
	SentAt      time.Time     `db:"sent_at" json:"sent_at"`
	RepliedAt   *time.Time    `db:"replied_at" json:"replied_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}
