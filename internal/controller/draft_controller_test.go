package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/controller"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

type mockDraftAPI struct {
	generatedTone  string
	multipleCount  int
	scope          service.DraftScope
	bestCampaignID *int
	bestTone       string
	deleted        int
}

func (m *mockDraftAPI) GenerateAndSave(_ context.Context, tone string, useCase model.UseCase, scope service.DraftScope) (*model.Draft, error) {
	m.generatedTone = tone
	m.scope = scope
	return &model.Draft{ID: 7, Tone: tone, UseCase: useCase, IsActive: true}, nil
}

func (m *mockDraftAPI) GenerateMultiple(_ context.Context, count int, useCase model.UseCase, scope service.DraftScope) ([]model.Draft, error) {
	m.multipleCount = count
	m.scope = scope
	out := make([]model.Draft, count)
	for i := range out {
		out[i] = model.Draft{ID: i + 1, Tone: service.ToneRotation[i%len(service.ToneRotation)], UseCase: useCase}
	}
	return out, nil
}

func (m *mockDraftAPI) GetBestDraft(_ context.Context, useCase model.UseCase, tone string, campaignID *int) (*model.Draft, error) {
	m.bestCampaignID = campaignID
	m.bestTone = tone
	return &model.Draft{ID: 3, Tone: tone, UseCase: useCase, ReplyCount: 4}, nil
}

func (m *mockDraftAPI) CreateCustom(_ context.Context, d *model.Draft) error {
	if d.Subject == "" || d.Body == "" {
		return appErrors.NewInvalidInput("subject and body are required")
	}
	d.ID = 11
	return nil
}

func (m *mockDraftAPI) Get(_ context.Context, id int) (*model.Draft, error) {
	if id != 3 {
		return nil, appErrors.NewDraftNotFound(id)
	}
	return &model.Draft{ID: 3, Subject: "Hi {{name}}"}, nil
}

func (m *mockDraftAPI) ListByCampaign(_ context.Context, campaignID int) ([]model.Draft, error) {
	return nil, nil
}

func (m *mockDraftAPI) Update(_ context.Context, id int, upd model.DraftUpdate) (*model.Draft, error) {
	d := &model.Draft{ID: id, Subject: "old"}
	if upd.Subject != nil {
		d.Subject = *upd.Subject
	}
	return d, nil
}

func (m *mockDraftAPI) Delete(_ context.Context, id int) error {
	m.deleted = id
	return nil
}

func newDraftRouter(m *mockDraftAPI) http.Handler {
	r := chi.NewRouter()
	(&controller.DraftController{Drafts: m}).Register(r)
	return r
}

func TestGenerateDraft_SingleDefaultsTone(t *testing.T) {
	m := &mockDraftAPI{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/drafts/generate", bytes.NewBufferString(`{"campaign_id":2,"context":"book demos"}`))
	newDraftRouter(m).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "professional", m.generatedTone)
	require.NotNil(t, m.scope.CampaignID)
	assert.Equal(t, 2, *m.scope.CampaignID)
	assert.Equal(t, "book demos", m.scope.Context)
}

func TestGenerateDraft_Multiple(t *testing.T) {
	m := &mockDraftAPI{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/drafts/generate", bytes.NewBufferString(`{"count":6,"use_case":"followup"}`))
	newDraftRouter(m).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 6, m.multipleCount)

	var body struct {
		Data []model.Draft `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 6)
	assert.Equal(t, "professional", body.Data[5].Tone)
	assert.Equal(t, model.UseCaseFollowUp, body.Data[0].UseCase)
}

func TestGenerateDraft_CountCapped(t *testing.T) {
	m := &mockDraftAPI{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/drafts/generate", bytes.NewBufferString(`{"count":50}`))
	newDraftRouter(m).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, m.multipleCount)
}

func TestCreateCustomDraft(t *testing.T) {
	m := &mockDraftAPI{}
	router := newDraftRouter(m)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/drafts", bytes.NewBufferString(`{"subject":"Hi","body":"Hello {{name}}"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":11`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/drafts", bytes.NewBufferString(`{"subject":"Hi"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetBestDraft(t *testing.T) {
	m := &mockDraftAPI{}
	rr := httptest.NewRecorder()
	newDraftRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drafts/best?tone=friendly&campaign_id=4", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "friendly", m.bestTone)
	require.NotNil(t, m.bestCampaignID)
	assert.Equal(t, 4, *m.bestCampaignID)

	rr = httptest.NewRecorder()
	newDraftRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drafts/best?campaign_id=x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetDraft_NotFound(t *testing.T) {
	rr := httptest.NewRecorder()
	newDraftRouter(&mockDraftAPI{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drafts/9", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListDrafts(t *testing.T) {
	router := newDraftRouter(&mockDraftAPI{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drafts?campaign_id=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":[]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drafts", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateAndDeleteDraft(t *testing.T) {
	m := &mockDraftAPI{}
	router := newDraftRouter(m)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/drafts/3", bytes.NewBufferString(`{"subject":"new"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"subject":"new"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/drafts/3", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 3, m.deleted)
}
