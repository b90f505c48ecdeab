// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// CampaignAPI is the campaign service surface the controller exposes.
type CampaignAPI interface {
	CreateCampaign(ctx context.Context, in service.CreateCampaignInput) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error)
	GetCampaignDetails(ctx context.Context, id int) (*service.CampaignDetails, error)
	UpdateCampaign(ctx context.Context, id int, upd service.CampaignUpdate) (*model.Campaign, error)
	AddLeads(ctx context.Context, campaignID int, leadIDs []int) (*service.AddLeadsResult, error)
	StartCampaign(ctx context.Context, campaignID int) error
	GetThread(ctx context.Context, campaignID, leadID int) ([]model.OutboundMessage, error)
	Preview(ctx context.Context, campaignID, leadID, draftID int) (*service.Personalized, error)
	DraftReply(ctx context.Context, campaignID, leadID int, tone string) (*model.Draft, error)
	CreateLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id int) (*model.Lead, error)
}

// ReplyDrafts manages the single reply draft a lead can have per campaign.
type ReplyDrafts interface {
	CreateReplyDraft(ctx context.Context, leadID, campaignID int, subject, body, tone string) (*model.Draft, error)
	GetReplyDraft(ctx context.Context, leadID, campaignID int) (*model.Draft, error)
	DeleteReplyDraft(ctx context.Context, leadID, campaignID int) (bool, error)
}

type ReplySender interface {
	SendReply(ctx context.Context, campaignID, leadID int) (*model.OutboundMessage, error)
}

type CampaignController struct {
	CampaignService CampaignAPI
	ReplyDrafts     ReplyDrafts
	Replies         ReplySender
}

func (c *CampaignController) Register(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", c.CreateCampaign)
		r.Get("/", c.ListCampaigns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.GetCampaignDetails)
			r.Patch("/", c.UpdateCampaign)
			r.Post("/leads", c.AddLeads)
			r.Post("/start", c.StartCampaign)
			r.Post("/preview", c.PersonalizedPreview)
			r.Route("/leads/{leadId}", func(r chi.Router) {
				r.Get("/thread", c.GetThread)
				r.Get("/reply-draft", c.GetReplyDraft)
				r.Put("/reply-draft", c.SaveReplyDraft)
				r.Post("/reply-draft/generate", c.GenerateReplyDraft)
				r.Delete("/reply-draft", c.DeleteReplyDraft)
				r.Post("/reply", c.SendReply)
			})
		})
	})
	r.Post("/leads", c.CreateLead)
	r.Get("/leads/{leadId}", c.GetLead)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return
	}

	details, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return
	}
	var body service.CampaignUpdate
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) AddLeads(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return
	}
	var body struct {
		LeadIDs []int `json:"lead_ids"`
	}
	if err := decode(r, &body); err != nil || len(body.LeadIDs) == 0 {
		badRequest(w, "lead_ids is required")
		return
	}

	result, err := c.CampaignService.AddLeads(r.Context(), id, body.LeadIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return
	}
	if err := c.CampaignService.StartCampaign(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"campaign_id": id, "status": "queued"})
}

// PersonalizedPreview renders a draft for one lead without sending anything.
func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return
	}
	var body struct {
		LeadID  int `json:"lead_id"`
		DraftID int `json:"draft_id"`
	}
	if err := decode(r, &body); err != nil || body.LeadID <= 0 {
		badRequest(w, "lead_id is required")
		return
	}

	rendered, err := c.CampaignService.Preview(r.Context(), id, body.LeadID, body.DraftID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":  rendered.Subject,
		"body":     rendered.Body,
		"lead_id":  body.LeadID,
		"draft_id": body.DraftID,
	})
}

func campaignAndLead(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	campaignID, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid campaign id")
		return 0, 0, false
	}
	leadID, ok := pathInt(r, "leadId")
	if !ok {
		badRequest(w, "invalid lead id")
		return 0, 0, false
	}
	return campaignID, leadID, true
}

func (c *CampaignController) GetThread(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	thread, err := c.CampaignService.GetThread(r.Context(), campaignID, leadID)
	if err != nil {
		writeError(w, err)
		return
	}
	if thread == nil {
		thread = []model.OutboundMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": thread})
}

func (c *CampaignController) GetReplyDraft(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	d, err := c.ReplyDrafts.GetReplyDraft(r.Context(), leadID, campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *CampaignController) SaveReplyDraft(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
		Tone    string `json:"tone"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	d, err := c.ReplyDrafts.CreateReplyDraft(r.Context(), leadID, campaignID, body.Subject, body.Body, body.Tone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *CampaignController) GenerateReplyDraft(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	d, err := c.CampaignService.DraftReply(r.Context(), campaignID, leadID, r.URL.Query().Get("tone"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (c *CampaignController) DeleteReplyDraft(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	deleted, err := c.ReplyDrafts.DeleteReplyDraft(r.Context(), leadID, campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (c *CampaignController) SendReply(w http.ResponseWriter, r *http.Request) {
	campaignID, leadID, ok := campaignAndLead(w, r)
	if !ok {
		return
	}
	msg, err := c.Replies.SendReply(r.Context(), campaignID, leadID)
	if err != nil {
		if msg != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "message": msg})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (c *CampaignController) CreateLead(w http.ResponseWriter, r *http.Request) {
	var body model.Lead
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	lead := &model.Lead{Name: body.Name, Email: body.Email, Company: body.Company, Position: body.Position}
	if err := c.CampaignService.CreateLead(r.Context(), lead); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (c *CampaignController) GetLead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "leadId")
	if !ok {
		badRequest(w, "invalid lead id")
		return
	}
	lead, err := c.CampaignService.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
