package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// ToneRotation is the order bulk generation cycles through.
var ToneRotation = []string{"professional", "friendly", "urgent", "data-driven", "storytelling"}

// DraftScope says where a draft belongs and what the generator should know.
// A nil CampaignID targets the global library.
type DraftScope struct {
	CampaignID *int
	Context    string
	Reference  string
	SenderName string
}

// CampaignScope scopes drafts to c and carries its context and reference.
func CampaignScope(c *model.Campaign) DraftScope {
	id := c.ID
	return DraftScope{CampaignID: &id, Context: c.Context, Reference: c.Reference, SenderName: c.SenderName}
}

// DraftPool picks and maintains message variants.
type DraftPool struct {
	Drafts    repository.DraftRepositoryInterface
	Generator Generator
	// Delay is slept between drafts of one bulk run.
	Delay time.Duration
	// Intn picks the index for random selection.
	Intn func(n int) int
}

func NewDraftPool(drafts repository.DraftRepositoryInterface, gen Generator, delay time.Duration) *DraftPool {
	return &DraftPool{Drafts: drafts, Generator: gen, Delay: delay, Intn: rand.Intn}
}

// GenerateAndSave asks the generator for one draft and stores it.
func (p *DraftPool) GenerateAndSave(ctx context.Context, tone string, useCase model.UseCase, scope DraftScope) (*model.Draft, error) {
	return p.generate(ctx, model.DraftRequest{
		Tone:       tone,
		UseCase:    useCase,
		Context:    scope.Context,
		Reference:  scope.Reference,
		SenderName: scope.SenderName,
	}, scope.CampaignID)
}

func (p *DraftPool) generate(ctx context.Context, req model.DraftRequest, campaignID *int) (*model.Draft, error) {
	content, err := p.Generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate %s/%s draft: %w", req.Tone, req.UseCase, err)
	}
	d := &model.Draft{
		CampaignID: campaignID,
		Subject:    content.Subject,
		Body:       content.Body,
		Tone:       req.Tone,
		UseCase:    req.UseCase,
	}
	if err := p.Drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GenerateMultiple builds count drafts cycling through ToneRotation, pausing
// Delay between generator calls. Individual failures are logged and skipped.
func (p *DraftPool) GenerateMultiple(ctx context.Context, count int, useCase model.UseCase, scope DraftScope) ([]model.Draft, error) {
	drafts := make([]model.Draft, 0, count)
	var lastErr error
	for i := 0; i < count; i++ {
		if i > 0 && p.Delay > 0 {
			select {
			case <-ctx.Done():
				return drafts, ctx.Err()
			case <-time.After(p.Delay):
			}
		}
		tone := ToneRotation[i%len(ToneRotation)]
		d, err := p.generate(ctx, model.DraftRequest{
			Tone:       tone,
			UseCase:    useCase,
			Context:    scope.Context,
			Reference:  scope.Reference,
			SenderName: scope.SenderName,
			Seed:       i + 1,
		}, scope.CampaignID)
		if err != nil {
			logger.Warn("bulk draft generation failed", "tone", tone, "use_case", useCase, "error", err)
			lastErr = err
			continue
		}
		drafts = append(drafts, *d)
	}
	if len(drafts) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return drafts, nil
}

// GetRandomActive picks uniformly among the campaign's active drafts, then
// among the global library, and generates a campaign draft when both are empty.
func (p *DraftPool) GetRandomActive(ctx context.Context, useCase model.UseCase, scope DraftScope) (*model.Draft, error) {
	scopes := []*int{nil}
	if scope.CampaignID != nil {
		scopes = []*int{scope.CampaignID, nil}
	}
	for _, campaignID := range scopes {
		drafts, err := p.Drafts.ListActive(ctx, campaignID, useCase, "")
		if err != nil {
			return nil, err
		}
		if len(drafts) > 0 {
			d := drafts[p.Intn(len(drafts))]
			return &d, nil
		}
	}
	return p.GenerateAndSave(ctx, ToneRotation[0], useCase, scope)
}

// GetBestDraft returns the draft with the most replies, then sends, then the newest,
// looking in the campaign first and the global library second. When neither has
// one, a global draft is generated.
func (p *DraftPool) GetBestDraft(ctx context.Context, useCase model.UseCase, tone string, campaignID *int) (*model.Draft, error) {
	scopes := []*int{nil}
	if campaignID != nil {
		scopes = []*int{campaignID, nil}
	}
	for _, id := range scopes {
		d, err := p.Drafts.FindBest(ctx, id, useCase, tone)
		if err == nil {
			return d, nil
		}
		if !appErrors.IsNotFound(err) {
			return nil, err
		}
	}
	if tone == "" {
		tone = ToneRotation[0]
	}
	return p.GenerateAndSave(ctx, tone, useCase, DraftScope{})
}

// CreateCustom stores a hand-written draft without calling the generator.
func (p *DraftPool) CreateCustom(ctx context.Context, d *model.Draft) error {
	if strings.TrimSpace(d.Subject) == "" || strings.TrimSpace(d.Body) == "" {
		return appErrors.NewInvalidInput("subject and body are required")
	}
	d.IsReplyDraft = false
	d.LeadID = nil
	return p.Drafts.Create(ctx, d)
}

func (p *DraftPool) Get(ctx context.Context, id int) (*model.Draft, error) {
	return p.Drafts.GetByID(ctx, id)
}

func (p *DraftPool) ListByCampaign(ctx context.Context, campaignID int) ([]model.Draft, error) {
	return p.Drafts.ListByCampaign(ctx, campaignID)
}

func (p *DraftPool) Update(ctx context.Context, id int, upd model.DraftUpdate) (*model.Draft, error) {
	return p.Drafts.Update(ctx, id, upd)
}

func (p *DraftPool) Delete(ctx context.Context, id int) error {
	return p.Drafts.Delete(ctx, id)
}

// CreateReplyDraft replaces any reply draft the lead already has in the campaign.
func (p *DraftPool) CreateReplyDraft(ctx context.Context, leadID, campaignID int, subject, body, tone string) (*model.Draft, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return nil, appErrors.NewInvalidInput("subject and body are required")
	}
	if tone == "" {
		tone = ToneRotation[0]
	}
	d := &model.Draft{
		CampaignID: &campaignID,
		LeadID:     &leadID,
		Subject:    subject,
		Body:       body,
		Tone:       tone,
	}
	if err := p.Drafts.ReplaceReplyDraft(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *DraftPool) GetReplyDraft(ctx context.Context, leadID, campaignID int) (*model.Draft, error) {
	return p.Drafts.GetReplyDraft(ctx, campaignID, leadID)
}

func (p *DraftPool) DeleteReplyDraft(ctx context.Context, leadID, campaignID int) (bool, error) {
	return p.Drafts.DeleteReplyDraft(ctx, campaignID, leadID)
}

// GenerateReplyDraft writes a reply to latestReply and stores it as the lead's reply draft.
func (p *DraftPool) GenerateReplyDraft(ctx context.Context, lead *model.Lead, campaign *model.Campaign, latestReply, tone string) (*model.Draft, error) {
	if tone == "" {
		tone = ToneRotation[0]
	}
	content, err := p.Generator.Generate(ctx, model.DraftRequest{
		Tone:          tone,
		UseCase:       model.UseCaseReply,
		Context:       campaign.Context,
		Reference:     campaign.Reference,
		SenderName:    campaign.SenderName,
		OriginalEmail: latestReply,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply draft: %w", err)
	}
	return p.CreateReplyDraft(ctx, lead.ID, campaign.ID, content.Subject, content.Body, tone)
}
