package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/controller"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// --- Mock services ---

type mockCampaignAPI struct {
	created   service.CreateCampaignInput
	listArgs  [3]any
	addedTo   int
	addedIDs  []int
	startErr  error
	previewed [3]int
}

func (m *mockCampaignAPI) CreateCampaign(_ context.Context, in service.CreateCampaignInput) (*model.Campaign, error) {
	m.created = in
	if strings.TrimSpace(in.Name) == "" {
		return nil, appErrors.NewInvalidInput("campaign name is required")
	}
	return &model.Campaign{ID: 1, Name: in.Name, Status: model.CampaignDraft}, nil
}

func (m *mockCampaignAPI) ListCampaigns(_ context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	m.listArgs = [3]any{page, pageSize, status}
	return []model.Campaign{{ID: 1, Name: "Q3"}}, map[string]int{"page": 1, "page_size": 20, "total_count": 1, "total_pages": 1}, nil
}

func (m *mockCampaignAPI) GetCampaignDetails(_ context.Context, id int) (*service.CampaignDetails, error) {
	if id != 1 {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &service.CampaignDetails{
		Campaign: &model.Campaign{ID: 1, Name: "Q3", Status: model.CampaignActive},
		Stats:    map[string]int{"total": 2, "SENT": 2},
		Outreach: map[string]int{"SENT": 2},
	}, nil
}

func (m *mockCampaignAPI) UpdateCampaign(_ context.Context, id int, upd service.CampaignUpdate) (*model.Campaign, error) {
	c := &model.Campaign{ID: id, Name: "Q3"}
	if upd.Context != nil {
		c.Context = *upd.Context
	}
	return c, nil
}

func (m *mockCampaignAPI) AddLeads(_ context.Context, campaignID int, leadIDs []int) (*service.AddLeadsResult, error) {
	m.addedTo, m.addedIDs = campaignID, leadIDs
	return &service.AddLeadsResult{Added: leadIDs[1:], Skipped: leadIDs[:1]}, nil
}

func (m *mockCampaignAPI) StartCampaign(context.Context, int) error { return m.startErr }

func (m *mockCampaignAPI) GetThread(_ context.Context, campaignID, leadID int) ([]model.OutboundMessage, error) {
	return nil, nil
}

func (m *mockCampaignAPI) Preview(_ context.Context, campaignID, leadID, draftID int) (*service.Personalized, error) {
	m.previewed = [3]int{campaignID, leadID, draftID}
	return &service.Personalized{Subject: "Hi Jane", Body: "Hello Jane at Acme"}, nil
}

func (m *mockCampaignAPI) DraftReply(_ context.Context, campaignID, leadID int, tone string) (*model.Draft, error) {
	return &model.Draft{ID: 9, CampaignID: &campaignID, LeadID: &leadID, Tone: tone, IsReplyDraft: true}, nil
}

func (m *mockCampaignAPI) CreateLead(_ context.Context, l *model.Lead) error {
	if l.Email == "dup@acme.test" {
		return appErrors.NewInvalidInput("email already exists")
	}
	l.ID = 5
	return nil
}

func (m *mockCampaignAPI) GetLead(_ context.Context, id int) (*model.Lead, error) {
	return &model.Lead{ID: id, Name: "Jane"}, nil
}

type mockReplies struct {
	sendErr error
	sent    bool
}

func (m *mockReplies) CreateReplyDraft(_ context.Context, leadID, campaignID int, subject, body, tone string) (*model.Draft, error) {
	return &model.Draft{ID: 3, LeadID: &leadID, CampaignID: &campaignID, Subject: subject, Body: body, IsReplyDraft: true}, nil
}

func (m *mockReplies) GetReplyDraft(_ context.Context, leadID, campaignID int) (*model.Draft, error) {
	return nil, appErrors.NewDraftNotFound(0)
}

func (m *mockReplies) DeleteReplyDraft(context.Context, int, int) (bool, error) { return true, nil }

func (m *mockReplies) SendReply(_ context.Context, campaignID, leadID int) (*model.OutboundMessage, error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = true
	return &model.OutboundMessage{ID: 12, CampaignID: campaignID, LeadID: leadID, Status: model.MessageSent}, nil
}

func newRouter(api *mockCampaignAPI, replies *mockReplies) http.Handler {
	r := chi.NewRouter()
	ctrl := &controller.CampaignController{CampaignService: api, ReplyDrafts: replies, Replies: replies}
	ctrl.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

// --- Tests ---

func TestCreateCampaign(t *testing.T) {
	api := &mockCampaignAPI{}
	h := newRouter(api, &mockReplies{})

	w := do(t, h, http.MethodPost, "/campaigns", map[string]any{"name": "Q3", "context": "book demos", "lead_ids": []int{1, 2}})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "book demos", api.created.Context)
	assert.Equal(t, []int{1, 2}, api.created.LeadIDs)

	w = do(t, h, http.MethodPost, "/campaigns", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCampaigns(t *testing.T) {
	api := &mockCampaignAPI{}
	h := newRouter(api, &mockReplies{})

	w := do(t, h, http.MethodGet, "/campaigns?page=2&page_size=5&status=ACTIVE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [3]any{2, 5, "ACTIVE"}, api.listArgs)

	var resp struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.Pagination["total_pages"])
}

func TestGetCampaignDetails(t *testing.T) {
	h := newRouter(&mockCampaignAPI{}, &mockReplies{})

	w := do(t, h, http.MethodGet, "/campaigns/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Q3", resp["name"])
	assert.Equal(t, float64(2), resp["stats"].(map[string]any)["SENT"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/campaigns/2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/campaigns/abc", nil).Code)
}

func TestAddLeads(t *testing.T) {
	api := &mockCampaignAPI{}
	h := newRouter(api, &mockReplies{})

	w := do(t, h, http.MethodPost, "/campaigns/4/leads", map[string]any{"lead_ids": []int{7, 8}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, api.addedTo)
	assert.JSONEq(t, `{"added":[8],"skipped":[7]}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/campaigns/4/leads", map[string]any{"lead_ids": []int{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartCampaign(t *testing.T) {
	api := &mockCampaignAPI{}
	h := newRouter(api, &mockReplies{})
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/campaigns/1/start", nil).Code)

	api.startErr = appErrors.ErrCampaignBusy
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/campaigns/1/start", nil).Code)
}

func TestPersonalizedPreviewHandler(t *testing.T) {
	api := &mockCampaignAPI{}
	h := newRouter(api, &mockReplies{})

	w := do(t, h, http.MethodPost, "/campaigns/1/preview", map[string]any{"lead_id": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [3]int{1, 2, 0}, api.previewed)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Hello Jane at Acme", resp["body"])

	w = do(t, h, http.MethodPost, "/campaigns/1/preview", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThread_EmptyIsArray(t *testing.T) {
	h := newRouter(&mockCampaignAPI{}, &mockReplies{})
	w := do(t, h, http.MethodGet, "/campaigns/1/leads/2/thread", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestReplyDraftRoutes(t *testing.T) {
	replies := &mockReplies{}
	h := newRouter(&mockCampaignAPI{}, replies)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/campaigns/1/leads/2/reply-draft", nil).Code)

	w := do(t, h, http.MethodPut, "/campaigns/1/leads/2/reply-draft", map[string]any{"subject": "Re", "body": "Thanks"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_reply_draft":true`)

	w = do(t, h, http.MethodPost, "/campaigns/1/leads/2/reply-draft/generate?tone=friendly", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"tone":"friendly"`)

	w = do(t, h, http.MethodDelete, "/campaigns/1/leads/2/reply-draft", nil)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())
}

func TestSendReply(t *testing.T) {
	replies := &mockReplies{}
	h := newRouter(&mockCampaignAPI{}, replies)

	w := do(t, h, http.MethodPost, "/campaigns/1/leads/2/reply", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, replies.sent)

	replies.sendErr = appErrors.ErrNoDraft
	w = do(t, h, http.MethodPost, "/campaigns/1/leads/2/reply", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateLead(t *testing.T) {
	h := newRouter(&mockCampaignAPI{}, &mockReplies{})
	w := do(t, h, http.MethodPost, "/leads", map[string]any{"name": "Jane", "email": "jane@acme.test"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":5`)

	w = do(t, h, http.MethodPost, "/leads", map[string]any{"name": "Jane", "email": "dup@acme.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/leads/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
