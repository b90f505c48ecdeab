// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// Trigger schedules a processing pass over a campaign.
type Trigger interface {
	Trigger(ctx context.Context, campaignID int, reason string) error
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	OutboundRepo repository.OutboundMessageRepositoryInterface
	Pool         *DraftPool
	Runner       Trigger
	// BootstrapCount is how many drafts a new campaign starts with.
	BootstrapCount int
}

type CreateCampaignInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Context     string `json:"context"`
	Reference   string `json:"reference"`
	SenderName  string `json:"sender_name"`
	LeadIDs     []int  `json:"lead_ids"`
}

// CampaignUpdate carries editable campaign fields; nil fields are left as they are.
type CampaignUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Context     *string `json:"context"`
	Reference   *string `json:"reference"`
	SenderName  *string `json:"sender_name"`
}

type AddLeadsResult struct {
	Added   []int `json:"added"`
	Skipped []int `json:"skipped"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats    map[string]int `json:"stats"`
	Outreach map[string]int `json:"outreach"`
	Drafts   []model.Draft  `json:"drafts"`
}

// CreateCampaign stores the campaign, bootstraps its draft pool and, when leads
// are given, attaches them and schedules the first run.
func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.NewInvalidInput("campaign name is required")
	}
	c := &model.Campaign{
		Name:        in.Name,
		Description: in.Description,
		Context:     in.Context,
		Reference:   in.Reference,
		SenderName:  in.SenderName,
		Status:      model.CampaignDraft,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	if s.BootstrapCount > 0 {
		drafts, err := s.Pool.GenerateMultiple(ctx, s.BootstrapCount, model.UseCaseInitial, CampaignScope(c))
		if err != nil {
			logger.Warn("draft bootstrap failed", "campaign_id", c.ID, "error", err)
		} else {
			logger.Info("drafts bootstrapped", "campaign_id", c.ID, "count", len(drafts))
		}
	}

	if len(in.LeadIDs) == 0 {
		return c, nil
	}
	if _, err := s.AddLeads(ctx, c.ID, in.LeadIDs); err != nil {
		return c, err
	}
	return s.CampaignRepo.GetByID(ctx, c.ID)
}

// AddLeads attaches leads as PENDING, activates the campaign and schedules a run.
func (s *CampaignService) AddLeads(ctx context.Context, campaignID int, leadIDs []int) (*AddLeadsResult, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	added, err := s.LeadRepo.AttachToCampaign(ctx, campaignID, leadIDs)
	if err != nil {
		return nil, err
	}
	result := &AddLeadsResult{Added: added, Skipped: difference(leadIDs, added)}
	if len(added) == 0 {
		return result, nil
	}

	switch campaign.Status {
	case model.CampaignDraft:
		if _, err := s.CampaignRepo.Activate(ctx, campaignID); err != nil {
			return result, err
		}
	case model.CampaignCompleted:
		if err := s.CampaignRepo.UpdateStatus(ctx, campaignID, model.CampaignActive); err != nil {
			return result, err
		}
	}

	if s.Runner != nil {
		if err := s.Runner.Trigger(ctx, campaignID, "leads_added"); err != nil {
			return result, fmt.Errorf("schedule campaign run: %w", err)
		}
	}
	return result, nil
}

// StartCampaign schedules a run over the campaign's open leads.
func (s *CampaignService) StartCampaign(ctx context.Context, campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignDraft {
		if _, err := s.CampaignRepo.Activate(ctx, campaignID); err != nil {
			return err
		}
	}
	if s.Runner == nil {
		return errors.New("campaign runner is not configured")
	}
	return s.Runner.Trigger(ctx, campaignID, "manual")
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetails(ctx context.Context, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.CampaignRepo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	outreach, err := s.LeadRepo.OutreachCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	drafts, err := s.Pool.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats, Outreach: outreach, Drafts: drafts}, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, campaignID int, upd CampaignUpdate) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return nil, appErrors.NewInvalidInput("campaign name cannot be empty")
		}
		c.Name = *upd.Name
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.Context != nil {
		c.Context = *upd.Context
	}
	if upd.Reference != nil {
		c.Reference = *upd.Reference
	}
	if upd.SenderName != nil {
		c.SenderName = *upd.SenderName
	}
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetThread returns sent and received messages for a lead in sent order.
func (s *CampaignService) GetThread(ctx context.Context, campaignID, leadID int) ([]model.OutboundMessage, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.OutboundRepo.ListThread(ctx, campaignID, leadID)
}

// Preview renders a draft for one lead without sending it. A zero draftID
// previews the draft the campaign would pick as its best initial draft.
func (s *CampaignService) Preview(ctx context.Context, campaignID, leadID, draftID int) (*Personalized, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	lead, err := s.LeadRepo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	var draft *model.Draft
	if draftID > 0 {
		draft, err = s.Pool.Get(ctx, draftID)
	} else {
		draft, err = s.Pool.GetBestDraft(ctx, model.UseCaseInitial, "", &campaign.ID)
	}
	if err != nil {
		return nil, err
	}
	p := Personalize(*lead, draft.Subject, draft.Body, campaign.Reference, campaign.SenderName)
	return &p, nil
}

// DraftReply generates a reply draft answering the lead's latest message.
func (s *CampaignService) DraftReply(ctx context.Context, campaignID, leadID int, tone string) (*model.Draft, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	lead, err := s.LeadRepo.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	latest, err := s.OutboundRepo.LatestIncoming(ctx, campaignID, leadID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, appErrors.NewInvalidInput(fmt.Sprintf("lead %d has not replied in campaign %d", leadID, campaignID))
	}
	return s.Pool.GenerateReplyDraft(ctx, lead, campaign, latest.Body, tone)
}

func (s *CampaignService) CreateLead(ctx context.Context, l *model.Lead) error {
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
	if strings.TrimSpace(l.Name) == "" || l.Email == "" {
		return appErrors.NewInvalidInput("lead name and email are required")
	}
	return s.LeadRepo.Create(ctx, l)
}

func (s *CampaignService) GetLead(ctx context.Context, id int) (*model.Lead, error) {
	return s.LeadRepo.GetByID(ctx, id)
}

func difference(all, taken []int) []int {
	in := make(map[int]bool, len(taken))
	for _, id := range taken {
		in[id] = true
	}
	rest := []int{}
	for _, id := range all {
		if !in[id] {
			rest = append(rest, id)
			in[id] = true
		}
	}
	return rest
}
