package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/mailer"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/distlock"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// RunResult summarises one processing pass over a campaign.
type RunResult struct {
	CampaignID int  `json:"campaign_id"`
	Processed  int  `json:"processed"`
	Sent       int  `json:"sent"`
	Failed     int  `json:"failed"`
	Skipped    int  `json:"skipped"`
	Deferred   int  `json:"deferred"`
	Completed  bool `json:"completed"`
	// Err is set by the runner when the pass itself failed.
	Err error `json:"-"`
}

type leadOutcome int

const (
	leadSent leadOutcome = iota
	leadFailed
	leadSkipped
	leadDeferred
)

// Orchestrator drives the send workflow of a campaign, one lead at a time.
type Orchestrator struct {
	Campaigns repository.CampaignRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Messages  repository.OutboundMessageRepositoryInterface
	Pool      *DraftPool
	Sender    mailer.Sender
	// Locks serialises runs of the same campaign; nil disables locking.
	Locks distlock.Provider
	// LockTTL is renewed after every lead on locks that expire.
	LockTTL time.Duration
	// From is recorded as the sender address on stored messages.
	From string
	Now  func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ProcessCampaign sends the initial message to every PENDING or PROCESSING lead
// and completes the campaign once none are left. It is safe to call repeatedly.
func (o *Orchestrator) ProcessCampaign(ctx context.Context, campaignID int) (*RunResult, error) {
	var lock distlock.DistLock
	if o.Locks != nil {
		lock = o.Locks.Lock(distlock.CampaignKey(campaignID))
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire campaign lock: %w", err)
		}
		if !ok {
			return nil, appErrors.ErrCampaignBusy
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("failed to release campaign lock", "campaign_id", campaignID, "error", err)
			}
		}()
	}

	campaign, err := o.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	result := &RunResult{CampaignID: campaignID}
	log := logger.With("campaign_id", campaignID)

	// Leads attached while a pass runs are picked up by the next batch; each
	// lead is handled at most once per pass.
	seen := make(map[int]bool)
	for batch := 1; ; batch++ {
		leads, err := o.Leads.ListByCampaign(ctx, campaignID, model.OpenOutreach)
		if err != nil {
			if batch == 1 {
				return nil, fmt.Errorf("list open leads: %w", err)
			}
			return result, fmt.Errorf("list open leads: %w", err)
		}
		fresh := leads[:0]
		for _, l := range leads {
			if !seen[l.ID] {
				fresh = append(fresh, l)
			}
		}
		if len(fresh) == 0 {
			break
		}
		log.Info("processing campaign", "batch", batch, "open_leads", len(fresh))

		for i := range fresh {
			if ctx.Err() != nil {
				log.Warn("campaign run interrupted", "remaining", len(fresh)-i)
				break
			}
			lead := &fresh[i]
			seen[lead.ID] = true
			result.Processed++
			o.countOutcome(result, o.runLead(ctx, campaign, lead))
			o.extendLock(ctx, lock, campaignID)
		}
		if ctx.Err() != nil {
			break
		}
	}

	remaining, err := o.Leads.CountByCampaign(ctx, campaignID, model.OpenOutreach)
	if err != nil {
		return result, fmt.Errorf("count open leads: %w", err)
	}
	if remaining == 0 {
		completed, err := o.Campaigns.Complete(ctx, campaignID)
		if err != nil {
			return result, fmt.Errorf("complete campaign: %w", err)
		}
		result.Completed = completed || campaign.Status == model.CampaignCompleted
	}

	log.Info("campaign pass finished",
		"sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped,
		"deferred", result.Deferred, "completed", result.Completed)
	return result, nil
}

// runLead processes one lead and marks it FAILED when processing itself errors.
func (o *Orchestrator) runLead(ctx context.Context, campaign *model.Campaign, lead *model.Lead) leadOutcome {
	outcome, err := o.processLead(ctx, campaign, lead)
	if err == nil {
		return outcome
	}
	logger.Error("lead processing failed", "campaign_id", campaign.ID, "lead_id", lead.ID, "error", err)
	if uerr := o.Leads.UpdateOutreachStatus(ctx, lead.ID, model.OutreachFailed); uerr != nil {
		logger.Error("failed to mark lead failed", "campaign_id", campaign.ID, "lead_id", lead.ID, "error", uerr)
	}
	return leadFailed
}

func (o *Orchestrator) countOutcome(result *RunResult, outcome leadOutcome) {
	switch outcome {
	case leadSent:
		result.Sent++
	case leadFailed:
		result.Failed++
	case leadSkipped:
		result.Skipped++
	case leadDeferred:
		result.Deferred++
	}
}

type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

func (o *Orchestrator) extendLock(ctx context.Context, lock distlock.DistLock, campaignID int) {
	ext, ok := lock.(extender)
	if !ok || o.LockTTL <= 0 {
		return
	}
	if err := ext.Extend(ctx, o.LockTTL); err != nil {
		logger.Warn("failed to extend campaign lock", "campaign_id", campaignID, "error", err)
	}
}

// processLead returns an error only for store failures; a rejected send is leadFailed.
func (o *Orchestrator) processLead(ctx context.Context, campaign *model.Campaign, lead *model.Lead) (leadOutcome, error) {
	sent, err := o.Messages.HasSent(ctx, lead.ID, campaign.ID)
	if err != nil {
		return leadFailed, fmt.Errorf("check previous send: %w", err)
	}
	if sent {
		// a previous run sent but died before updating the lead
		return leadSkipped, o.Leads.MarkSent(ctx, lead.ID)
	}

	draft, err := o.Pool.GetRandomActive(ctx, model.UseCaseInitial, CampaignScope(campaign))
	if err != nil {
		logger.Warn("no draft for lead, leaving it pending", "campaign_id", campaign.ID, "lead_id", lead.ID, "error", err)
		return leadDeferred, o.Leads.UpdateOutreachStatus(ctx, lead.ID, model.OutreachPending)
	}

	if err := o.Leads.UpdateOutreachStatus(ctx, lead.ID, model.OutreachProcessing); err != nil {
		return leadFailed, err
	}

	p := Personalize(*lead, draft.Subject, draft.Body, campaign.Reference, campaign.SenderName)
	res := o.Sender.SendEmail(ctx, mailer.Email{
		To:         lead.Email,
		Subject:    p.Subject,
		Text:       p.Body,
		SenderName: campaign.SenderName,
	})

	draftID := draft.ID
	msg := &model.OutboundMessage{
		LeadID:      lead.ID,
		CampaignID:  campaign.ID,
		DraftID:     &draftID,
		Subject:     p.Subject,
		Body:        p.Body,
		Status:      model.MessageSent,
		MessageID:   res.MessageID,
		FromAddress: o.From,
		ToAddress:   lead.Email,
		SentAt:      o.now(),
	}
	if !res.Success {
		msg.Status = model.MessageFailed
		msg.LastError = res.Error
		msg.MessageID = ""
	}

	if err := o.Messages.Create(ctx, msg); err != nil {
		if errors.Is(err, appErrors.ErrAlreadySent) {
			return leadSkipped, o.Leads.MarkSent(ctx, lead.ID)
		}
		return leadFailed, fmt.Errorf("record outbound message: %w", err)
	}

	if !res.Success {
		logger.Warn("send rejected", "campaign_id", campaign.ID, "lead_id", lead.ID, "error", res.Error)
		return leadFailed, o.Leads.UpdateOutreachStatus(ctx, lead.ID, model.OutreachFailed)
	}

	if err := o.Leads.MarkSent(ctx, lead.ID); err != nil {
		return leadFailed, err
	}
	if err := o.Pool.Drafts.IncrementSentCount(ctx, draft.ID); err != nil {
		logger.Warn("failed to bump draft sent count", "draft_id", draft.ID, "error", err)
	}
	return leadSent, nil
}

// SendReply sends the lead's reply draft threaded under their latest reply,
// then removes the draft.
func (o *Orchestrator) SendReply(ctx context.Context, campaignID, leadID int) (*model.OutboundMessage, error) {
	campaign, err := o.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	lead, err := o.Leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.CampaignID == nil || *lead.CampaignID != campaignID {
		return nil, appErrors.NewLeadNotFound(leadID)
	}

	draft, err := o.Pool.GetReplyDraft(ctx, leadID, campaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, appErrors.ErrNoDraft
		}
		return nil, err
	}
	latest, err := o.Messages.LatestIncoming(ctx, campaignID, leadID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("lead %d has not replied in campaign %d", leadID, campaignID)
	}

	p := Personalize(*lead, draft.Subject, draft.Body, campaign.Reference, campaign.SenderName)
	res := o.Sender.SendEmail(ctx, mailer.Email{
		To:         lead.Email,
		Subject:    p.Subject,
		Text:       p.Body,
		SenderName: campaign.SenderName,
		InReplyTo:  latest.MessageID,
	})

	replyTo := latest.ID
	draftID := draft.ID
	msg := &model.OutboundMessage{
		LeadID:      leadID,
		CampaignID:  campaignID,
		DraftID:     &draftID,
		Subject:     p.Subject,
		Body:        p.Body,
		Status:      model.MessageSent,
		MessageID:   res.MessageID,
		InReplyTo:   latest.MessageID,
		References:  latest.MessageID,
		FromAddress: o.From,
		ToAddress:   lead.Email,
		ReplyToID:   &replyTo,
		SentAt:      o.now(),
	}
	if !res.Success {
		msg.Status = model.MessageFailed
		msg.LastError = res.Error
		msg.MessageID = ""
	}
	if err := o.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("record reply: %w", err)
	}
	if !res.Success {
		return msg, fmt.Errorf("send reply: %s", res.Error)
	}

	if err := o.Leads.MarkSent(ctx, leadID); err != nil {
		return msg, err
	}
	if _, err := o.Pool.DeleteReplyDraft(ctx, leadID, campaignID); err != nil {
		logger.Warn("failed to delete sent reply draft", "campaign_id", campaignID, "lead_id", leadID, "error", err)
	}
	return msg, nil
}
