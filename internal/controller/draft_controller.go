package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// DraftAPI is the draft pool surface the controller exposes.
type DraftAPI interface {
	GenerateAndSave(ctx context.Context, tone string, useCase model.UseCase, scope service.DraftScope) (*model.Draft, error)
	GenerateMultiple(ctx context.Context, count int, useCase model.UseCase, scope service.DraftScope) ([]model.Draft, error)
	GetBestDraft(ctx context.Context, useCase model.UseCase, tone string, campaignID *int) (*model.Draft, error)
	CreateCustom(ctx context.Context, d *model.Draft) error
	Get(ctx context.Context, id int) (*model.Draft, error)
	ListByCampaign(ctx context.Context, campaignID int) ([]model.Draft, error)
	Update(ctx context.Context, id int, upd model.DraftUpdate) (*model.Draft, error)
	Delete(ctx context.Context, id int) error
}

type DraftController struct {
	Drafts DraftAPI
}

func (c *DraftController) Register(r chi.Router) {
	r.Route("/drafts", func(r chi.Router) {
		r.Get("/", c.ListByCampaign)
		r.Post("/", c.CreateCustom)
		r.Post("/generate", c.Generate)
		r.Get("/best", c.GetBest)
		r.Get("/{id}", c.Get)
		r.Patch("/{id}", c.Update)
		r.Delete("/{id}", c.Delete)
	})
}

type generateRequest struct {
	Tone       string        `json:"tone"`
	UseCase    model.UseCase `json:"use_case"`
	Count      int           `json:"count"`
	CampaignID *int          `json:"campaign_id"`
	Context    string        `json:"context"`
	Reference  string        `json:"reference"`
	SenderName string        `json:"sender_name"`
}

// Generate creates one draft for the given tone, or Count drafts across the tone rotation.
func (c *DraftController) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if body.UseCase == "" {
		body.UseCase = model.UseCaseInitial
	}
	scope := service.DraftScope{
		CampaignID: body.CampaignID,
		Context:    body.Context,
		Reference:  body.Reference,
		SenderName: body.SenderName,
	}

	if body.Count > 1 {
		if body.Count > 20 {
			badRequest(w, "count must be at most 20")
			return
		}
		drafts, err := c.Drafts.GenerateMultiple(r.Context(), body.Count, body.UseCase, scope)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"data": drafts})
		return
	}

	tone := body.Tone
	if tone == "" {
		tone = service.ToneRotation[0]
	}
	d, err := c.Drafts.GenerateAndSave(r.Context(), tone, body.UseCase, scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (c *DraftController) CreateCustom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID *int          `json:"campaign_id"`
		Subject    string        `json:"subject"`
		Body       string        `json:"body"`
		Tone       string        `json:"tone"`
		UseCase    model.UseCase `json:"use_case"`
	}
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	d := &model.Draft{
		CampaignID: body.CampaignID,
		Subject:    body.Subject,
		Body:       body.Body,
		Tone:       body.Tone,
		UseCase:    body.UseCase,
	}
	if err := c.Drafts.CreateCustom(r.Context(), d); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (c *DraftController) GetBest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	useCase := model.UseCase(q.Get("use_case"))
	if useCase == "" {
		useCase = model.UseCaseInitial
	}
	var campaignID *int
	if v := q.Get("campaign_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid campaign_id")
			return
		}
		campaignID = &id
	}

	d, err := c.Drafts.GetBestDraft(r.Context(), useCase, q.Get("tone"), campaignID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *DraftController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid draft id")
		return
	}
	d, err := c.Drafts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *DraftController) ListByCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("campaign_id"))
	if err != nil || id <= 0 {
		badRequest(w, "campaign_id is required")
		return
	}
	drafts, err := c.Drafts.ListByCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if drafts == nil {
		drafts = []model.Draft{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": drafts})
}

func (c *DraftController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid draft id")
		return
	}
	var body model.DraftUpdate
	if err := decode(r, &body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	d, err := c.Drafts.Update(r.Context(), id, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (c *DraftController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		badRequest(w, "invalid draft id")
		return
	}
	if err := c.Drafts.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
