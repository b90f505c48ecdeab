package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

const (
	messageIDConstraint = "outbound_messages_message_id_key"
	oneSentConstraint   = "outbound_messages_one_sent_idx"
)

type OutboundMessageRepositoryInterface interface {
	Create(ctx context.Context, msg *model.OutboundMessage) error
	GetByID(ctx context.Context, id int) (*model.OutboundMessage, error)
	// HasSent reports whether the lead already has an initial SENT message in the campaign.
	HasSent(ctx context.Context, leadID, campaignID int) (bool, error)
	// FindOutgoingByMessageIDs returns the oldest outgoing message whose id is in ids.
	FindOutgoingByMessageIDs(ctx context.Context, ids []string) (*model.OutboundMessage, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	MarkReplied(ctx context.Context, id int, at time.Time) error
	ListThread(ctx context.Context, campaignID, leadID int) ([]model.OutboundMessage, error)
	LatestIncoming(ctx context.Context, campaignID, leadID int) (*model.OutboundMessage, error)
}

type OutboundMessageRepository struct {
	DB *sql.DB
}

const messageColumns = `id, lead_id, campaign_id, draft_id, subject, body, status, last_error, is_incoming,
        message_id, in_reply_to, "references", from_address, to_address, reply_to_id,
        sent_at, replied_at, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.OutboundMessage, error) {
	var m model.OutboundMessage
	var draftID, replyToID sql.NullInt64
	var messageID sql.NullString
	var repliedAt sql.NullTime
	if err := row.Scan(
		&m.ID, &m.LeadID, &m.CampaignID, &draftID, &m.Subject, &m.Body, &m.Status, &m.LastError, &m.IsIncoming,
		&messageID, &m.InReplyTo, &m.References, &m.FromAddress, &m.ToAddress, &replyToID,
		&m.SentAt, &repliedAt, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.DraftID = intPtr(draftID)
	m.ReplyToID = intPtr(replyToID)
	m.MessageID = messageID.String
	m.RepliedAt = timePtr(repliedAt)
	return &m, nil
}

// NormalizeMessageID strips surrounding whitespace and angle brackets.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	return strings.TrimSuffix(id, ">")
}

// Create inserts a message row. A clash on the message id maps to ErrDuplicateMessage,
// a second initial SENT row for the same lead and campaign maps to ErrAlreadySent.
func (r *OutboundMessageRepository) Create(ctx context.Context, msg *model.OutboundMessage) error {
	now := time.Now()
	msg.CreatedAt = now
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	msg.MessageID = NormalizeMessageID(msg.MessageID)

	query := `
        INSERT INTO outbound_messages
        (lead_id, campaign_id, draft_id, subject, body, status, last_error, is_incoming,
         message_id, in_reply_to, "references", from_address, to_address, reply_to_id, sent_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		msg.LeadID, msg.CampaignID, nullInt(msg.DraftID), msg.Subject, msg.Body, msg.Status, msg.LastError,
		msg.IsIncoming, nullString(msg.MessageID), msg.InReplyTo, msg.References, msg.FromAddress,
		msg.ToAddress, nullInt(msg.ReplyToID), msg.SentAt, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		if constraint, dup := violatedConstraint(err); dup {
			if constraint == oneSentConstraint {
				return appErrors.ErrAlreadySent
			}
			return appErrors.ErrDuplicateMessage
		}
		return fmt.Errorf("create outbound message: %w", err)
	}
	return nil
}

func (r *OutboundMessageRepository) GetByID(ctx context.Context, id int) (*model.OutboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM outbound_messages WHERE id = $1`
	m, err := scanMessage(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("outbound message %d not found", id)
		}
		return nil, fmt.Errorf("get outbound message: %w", err)
	}
	return m, nil
}

func (r *OutboundMessageRepository) HasSent(ctx context.Context, leadID, campaignID int) (bool, error) {
	query := `
        SELECT 1 FROM outbound_messages
        WHERE lead_id = $1 AND campaign_id = $2 AND status = 'SENT'
          AND NOT is_incoming AND reply_to_id IS NULL
        LIMIT 1
    `
	var tmp int
	err := r.DB.QueryRowContext(ctx, query, leadID, campaignID).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check sent message: %w", err)
	}
	return true, nil
}

// FindOutgoingByMessageIDs returns nil, nil when nothing matches.
func (r *OutboundMessageRepository) FindOutgoingByMessageIDs(ctx context.Context, ids []string) (*model.OutboundMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = NormalizeMessageID(id); id != "" {
			normalized = append(normalized, id)
		}
	}
	query := `SELECT ` + messageColumns + ` FROM outbound_messages
        WHERE message_id = ANY($1) AND NOT is_incoming AND status = 'SENT'
        ORDER BY sent_at ASC LIMIT 1`
	m, err := scanMessage(r.DB.QueryRowContext(ctx, query, pq.Array(normalized)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find outgoing message: %w", err)
	}
	return m, nil
}

func (r *OutboundMessageRepository) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM outbound_messages WHERE message_id = $1)`,
		NormalizeMessageID(messageID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check message id: %w", err)
	}
	return exists, nil
}

func (r *OutboundMessageRepository) MarkReplied(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE outbound_messages SET replied_at = $1 WHERE id = $2 AND replied_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("mark message replied: %w", err)
	}
	return nil
}

func (r *OutboundMessageRepository) ListThread(ctx context.Context, campaignID, leadID int) ([]model.OutboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM outbound_messages
        WHERE campaign_id = $1 AND lead_id = $2 ORDER BY sent_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, campaignID, leadID)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	msgs := []model.OutboundMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// LatestIncoming returns nil, nil when the lead never replied.
func (r *OutboundMessageRepository) LatestIncoming(ctx context.Context, campaignID, leadID int) (*model.OutboundMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM outbound_messages
        WHERE campaign_id = $1 AND lead_id = $2 AND is_incoming
        ORDER BY sent_at DESC, id DESC LIMIT 1`
	m, err := scanMessage(r.DB.QueryRowContext(ctx, query, campaignID, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest incoming message: %w", err)
	}
	return m, nil
}

var _ OutboundMessageRepositoryInterface = (*OutboundMessageRepository)(nil)
