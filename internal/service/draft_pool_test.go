package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
)

func TestGetRandomActive_PrefersCampaignDraft(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	h.draft(nil, "global")
	scoped := h.draft(&c.ID, "scoped")

	d, err := h.pool.GetRandomActive(context.Background(), model.UseCaseInitial, CampaignScope(c))
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, d.ID)
	assert.Empty(t, h.gen.calls)
}

func TestGetRandomActive_FallsBackToGlobal(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	global := h.draft(nil, "global")

	d, err := h.pool.GetRandomActive(context.Background(), model.UseCaseInitial, CampaignScope(c))
	require.NoError(t, err)
	assert.Equal(t, global.ID, d.ID)
	assert.Empty(t, h.gen.calls)
}

func TestGetRandomActive_GeneratesWhenEmpty(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	c.Context = "book demos"

	d, err := h.pool.GetRandomActive(context.Background(), model.UseCaseInitial, CampaignScope(c))
	require.NoError(t, err)
	require.Len(t, h.gen.calls, 1)
	assert.Equal(t, "book demos", h.gen.calls[0].Context)
	require.NotNil(t, d.CampaignID)
	assert.Equal(t, c.ID, *d.CampaignID)
}

func TestGetRandomActive_UsesPicker(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	h.draft(&c.ID, "one")
	second := h.draft(&c.ID, "two")
	h.pool.Intn = func(n int) int {
		assert.Equal(t, 2, n)
		return 1
	}

	d, err := h.pool.GetRandomActive(context.Background(), model.UseCaseInitial, CampaignScope(c))
	require.NoError(t, err)
	assert.Equal(t, second.ID, d.ID)
}

func TestGetBestDraft_Ranking(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	ctx := context.Background()

	a := h.draft(&c.ID, "a")
	b := h.draft(&c.ID, "b")
	newest := h.draft(&c.ID, "newest")
	require.NoError(t, h.drafts.IncrementSentCount(ctx, a.ID))
	require.NoError(t, h.drafts.IncrementSentCount(ctx, b.ID))

	// a and b tie on replies and sends, newest has neither
	d, err := h.pool.GetBestDraft(ctx, model.UseCaseInitial, "", &c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, d.ID)

	require.NoError(t, h.drafts.IncrementReplyCount(ctx, newest.ID))
	d, err = h.pool.GetBestDraft(ctx, model.UseCaseInitial, "", &c.ID)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, d.ID)
}

func TestGetBestDraft_ScopeOrder(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	ctx := context.Background()

	d, err := h.pool.GetBestDraft(ctx, model.UseCaseInitial, "friendly", &c.ID)
	require.NoError(t, err)
	assert.Nil(t, d.CampaignID, "generated best draft goes to the global library")
	assert.Equal(t, "friendly", d.Tone)
	require.Len(t, h.gen.calls, 1)

	d2, err := h.pool.GetBestDraft(ctx, model.UseCaseInitial, "friendly", &c.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, d2.ID)
	assert.Len(t, h.gen.calls, 1)

	scoped := &model.Draft{CampaignID: &c.ID, Subject: "s", Body: "b", Tone: "friendly", UseCase: model.UseCaseInitial}
	require.NoError(t, h.drafts.Create(ctx, scoped))
	d3, err := h.pool.GetBestDraft(ctx, model.UseCaseInitial, "friendly", &c.ID)
	require.NoError(t, err)
	assert.Equal(t, scoped.ID, d3.ID)
}

func TestGenerateMultiple_RotatesTones(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)

	drafts, err := h.pool.GenerateMultiple(context.Background(), 7, model.UseCaseInitial, CampaignScope(c))
	require.NoError(t, err)
	require.Len(t, drafts, 7)

	var tones []string
	for _, d := range drafts {
		tones = append(tones, d.Tone)
	}
	assert.Equal(t, []string{"professional", "friendly", "urgent", "data-driven", "storytelling", "professional", "friendly"}, tones)
	assert.Equal(t, 1, h.gen.calls[0].Seed)
	assert.Equal(t, 7, h.gen.calls[6].Seed)
}

func TestGenerateMultiple_HonoursCancel(t *testing.T) {
	h := newHarness()
	h.pool.Delay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	drafts, err := h.pool.GenerateMultiple(ctx, 3, model.UseCaseInitial, DraftScope{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, drafts, 1)
}

func TestGenerateMultiple_AllFail(t *testing.T) {
	h := newHarness()
	h.gen.err = errors.New("quota exceeded")

	_, err := h.pool.GenerateMultiple(context.Background(), 2, model.UseCaseInitial, DraftScope{})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestCreateReplyDraft_AtMostOne(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	l := h.lead(c.ID, "jane@acme.test", model.OutreachSent)
	ctx := context.Background()

	_, err := h.pool.CreateReplyDraft(ctx, l.ID, c.ID, "first", "body", "")
	require.NoError(t, err)
	second, err := h.pool.CreateReplyDraft(ctx, l.ID, c.ID, "second", "body", "friendly")
	require.NoError(t, err)

	assert.Equal(t, 1, h.drafts.ReplyDraftCount(c.ID, l.ID))
	got, err := h.pool.GetReplyDraft(ctx, l.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, model.UseCaseReply, got.UseCase)

	deleted, err := h.pool.DeleteReplyDraft(ctx, l.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, h.drafts.ReplyDraftCount(c.ID, l.ID))

	_, err = h.pool.CreateReplyDraft(ctx, l.ID, c.ID, " ", "body", "")
	assert.Error(t, err)
}

func TestGenerateReplyDraft_PassesReply(t *testing.T) {
	h := newHarness()
	c := h.campaign(model.CampaignActive)
	l := h.lead(c.ID, "jane@acme.test", model.OutreachSent)

	d, err := h.pool.GenerateReplyDraft(context.Background(), l, c, "Sounds interesting, tell me more", "")
	require.NoError(t, err)
	assert.True(t, d.IsReplyDraft)
	require.Len(t, h.gen.calls, 1)
	assert.Equal(t, model.UseCaseReply, h.gen.calls[0].UseCase)
	assert.Equal(t, "Sounds interesting, tell me more", h.gen.calls[0].OriginalEmail)
}

func TestCreateCustom_Validates(t *testing.T) {
	h := newHarness()
	err := h.pool.CreateCustom(context.Background(), &model.Draft{Subject: "", Body: "b"})
	assert.Error(t, err)

	d := &model.Draft{Subject: "s", Body: "b", Tone: "urgent", UseCase: model.UseCaseFollowUp}
	require.NoError(t, h.pool.CreateCustom(context.Background(), d))
	assert.Empty(t, h.gen.calls)
	assert.NotZero(t, d.ID)
}
