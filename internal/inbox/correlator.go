package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// MessageStore is the part of the outbound message repository correlation needs.
type MessageStore interface {
	FindOutgoingByMessageIDs(ctx context.Context, ids []string) (*model.OutboundMessage, error)
	ExistsByMessageID(ctx context.Context, messageID string) (bool, error)
	Create(ctx context.Context, msg *model.OutboundMessage) error
	MarkReplied(ctx context.Context, id int, at time.Time) error
}

type LeadStore interface {
	UpdateStatus(ctx context.Context, id int, status model.LeadStatus) error
}

type DraftStore interface {
	IncrementReplyCount(ctx context.Context, id int) error
}

// Outcome says what happened to one inbound message.
type Outcome string

const (
	OutcomeLinked         Outcome = "linked"
	OutcomeMissingHeaders Outcome = "missing_headers"
	OutcomeNotAReply      Outcome = "not_a_reply"
	OutcomeNoMatch        Outcome = "no_match"
	OutcomeDuplicate      Outcome = "duplicate"
)

// Correlator links inbound replies to the outgoing message they answer.
type Correlator struct {
	Messages MessageStore
	Leads    LeadStore
	Drafts   DraftStore
	Now      func() time.Time
}

func NewCorrelator(messages MessageStore, leads LeadStore, drafts DraftStore) *Correlator {
	return &Correlator{Messages: messages, Leads: leads, Drafts: drafts, Now: time.Now}
}

// Correlate stores msg as an inbound row when it threads under one of our sends.
// Messages that are not replies to us, or were already stored, are ignored without error.
func (c *Correlator) Correlate(ctx context.Context, msg *model.ParsedMessage) (Outcome, error) {
	from := msg.FromAddress()
	if from == "" || msg.MessageID == "" {
		logger.Warn("inbound message missing headers, skipping", "from", from, "message_id", msg.MessageID)
		return OutcomeMissingHeaders, nil
	}

	ids := msg.ThreadIDs()
	if len(ids) == 0 {
		logger.Debug("inbound message has no threading headers", "message_id", msg.MessageID)
		return OutcomeNotAReply, nil
	}

	original, err := c.Messages.FindOutgoingByMessageIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("look up original message: %w", err)
	}
	if original == nil {
		logger.Debug("no matching outbound email", "message_id", msg.MessageID)
		return OutcomeNoMatch, nil
	}

	exists, err := c.Messages.ExistsByMessageID(ctx, msg.MessageID)
	if err != nil {
		return "", fmt.Errorf("check inbound duplicate: %w", err)
	}
	now := c.Now()
	if exists {
		// an earlier cycle stored the row but stopped before stamping the original
		if original.RepliedAt == nil {
			if err := c.link(ctx, original, now); err != nil {
				return "", err
			}
			logger.Info("completed linkage of stored reply", "message_id", msg.MessageID, "original_id", original.ID)
		}
		return OutcomeDuplicate, nil
	}

	reply := &model.OutboundMessage{
		LeadID:      original.LeadID,
		CampaignID:  original.CampaignID,
		Subject:     msg.Subject,
		Body:        ExtractReply(msg.Text),
		Status:      model.MessageSent,
		IsIncoming:  true,
		MessageID:   msg.MessageID,
		InReplyTo:   msg.InReplyTo,
		References:  strings.Join(msg.References, " "),
		FromAddress: from,
		ToAddress:   msg.ToAddress(),
		ReplyToID:   &original.ID,
		SentAt:      sentAt(msg, now),
	}
	if err := c.Messages.Create(ctx, reply); err != nil {
		if errors.Is(err, appErrors.ErrDuplicateMessage) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("store inbound reply: %w", err)
	}

	if err := c.link(ctx, original, now); err != nil {
		return "", err
	}

	logger.Info("stored inbound reply",
		"message_id", msg.MessageID, "original_id", original.ID,
		"campaign_id", original.CampaignID, "lead_id", original.LeadID)
	return OutcomeLinked, nil
}

// link stamps repliedAt on the original, then marks the lead REPLIED and counts
// the reply against the draft. Only the stamp is required to succeed.
func (c *Correlator) link(ctx context.Context, original *model.OutboundMessage, now time.Time) error {
	if err := c.Messages.MarkReplied(ctx, original.ID, now); err != nil {
		return fmt.Errorf("mark original replied: %w", err)
	}
	if c.Leads != nil {
		if err := c.Leads.UpdateStatus(ctx, original.LeadID, model.LeadReplied); err != nil {
			logger.Warn("failed to mark lead replied", "lead_id", original.LeadID, "error", err)
		}
	}
	if c.Drafts != nil && original.DraftID != nil {
		if err := c.Drafts.IncrementReplyCount(ctx, *original.DraftID); err != nil {
			logger.Warn("failed to count draft reply", "draft_id", *original.DraftID, "error", err)
		}
	}
	return nil
}
