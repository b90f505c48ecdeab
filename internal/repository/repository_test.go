package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var messageRowColumns = []string{
	"id", "lead_id", "campaign_id", "draft_id", "subject", "body", "status", "last_error", "is_incoming",
	"message_id", "in_reply_to", "references", "from_address", "to_address", "reply_to_id",
	"sent_at", "replied_at", "created_at",
}

func TestCampaignRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectQuery("SELECT .* FROM campaigns WHERE id=\\$1").
		WithArgs(42).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 42)
	assert.True(t, appErrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_ActivateOnlyFromDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectExec("UPDATE campaigns SET status='ACTIVE'").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns SET status='ACTIVE'").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Activate(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Activate(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_GetCampaignStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("SENT", 3).
		AddRow("FAILED", 1).
		AddRow("REPLIED", 2)
	mock.ExpectQuery("FROM outbound_messages").WithArgs(7).WillReturnRows(rows)

	stats, err := repo.GetCampaignStats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["SENT"])
	assert.Equal(t, 1, stats["FAILED"])
	assert.Equal(t, 2, stats["REPLIED"])
	assert.Equal(t, 6, stats["total"])
}

func TestCampaignRepository_OldestCreatedAt_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectQuery("SELECT MIN\\(created_at\\) FROM campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(nil))

	oldest, err := repo.OldestCreatedAt(context.Background())
	require.NoError(t, err)
	assert.Nil(t, oldest)
}

func TestLeadRepository_ListByCampaign_FiltersStatuses(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "company", "position", "status", "outreach_status", "campaign_id", "created_at", "updated_at",
	}).AddRow(1, "Ada Lovelace", "ada@example.com", "Analytical", "CTO", "NEW", "PENDING", 5, now, now)

	mock.ExpectQuery("FROM leads WHERE campaign_id = \\$1 AND outreach_status = ANY\\(\\$2\\)").
		WithArgs(5, pq.Array([]string{"PENDING", "PROCESSING"})).
		WillReturnRows(rows)

	leads, err := repo.ListByCampaign(context.Background(), 5, model.OpenOutreach)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "ada@example.com", leads[0].Email)
	require.NotNil(t, leads[0].CampaignID)
	assert.Equal(t, 5, *leads[0].CampaignID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_MarkSent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &LeadRepository{DB: db}

	mock.ExpectExec("UPDATE leads SET outreach_status = 'SENT', status = 'CONTACTED'").
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSent(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepository_FindBest_None(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &DraftRepository{DB: db}

	mock.ExpectQuery("ORDER BY reply_count DESC, sent_count DESC, created_at DESC").
		WithArgs(model.UseCaseInitial, "friendly").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBest(context.Background(), nil, model.UseCaseInitial, "friendly")
	assert.True(t, appErrors.IsNotFound(err))
}

func TestDraftRepository_ReplaceReplyDraft(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &DraftRepository{DB: db}
	campaignID, leadID := 3, 4

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM drafts WHERE campaign_id = \\$1 AND lead_id = \\$2 AND is_reply_draft").
		WithArgs(campaignID, leadID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO drafts").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	d := &model.Draft{CampaignID: &campaignID, LeadID: &leadID, Subject: "Re: hi", Body: "thanks"}
	require.NoError(t, repo.ReplaceReplyDraft(context.Background(), d))
	assert.Equal(t, 11, d.ID)
	assert.True(t, d.IsReplyDraft)
	assert.Equal(t, model.UseCaseReply, d.UseCase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepository_ReplaceReplyDraft_RequiresScope(t *testing.T) {
	repo := &DraftRepository{}
	err := repo.ReplaceReplyDraft(context.Background(), &model.Draft{Subject: "x"})
	assert.Error(t, err)
}

func TestOutboundMessageRepository_Create_MapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "second initial send", constraint: oneSentConstraint, want: appErrors.ErrAlreadySent},
		{name: "same message id", constraint: messageIDConstraint, want: appErrors.ErrDuplicateMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &OutboundMessageRepository{DB: db}

			mock.ExpectQuery("INSERT INTO outbound_messages").
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			err := repo.Create(context.Background(), &model.OutboundMessage{
				LeadID: 1, CampaignID: 2, Status: model.MessageSent, MessageID: "<abc@example.com>",
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOutboundMessageRepository_Create_NormalizesMessageID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &OutboundMessageRepository{DB: db}

	mock.ExpectQuery("INSERT INTO outbound_messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	msg := &model.OutboundMessage{LeadID: 1, CampaignID: 2, Status: model.MessageSent, MessageID: " <abc@example.com> "}
	require.NoError(t, repo.Create(context.Background(), msg))
	assert.Equal(t, "abc@example.com", msg.MessageID)
	assert.False(t, msg.SentAt.IsZero())
}

func TestOutboundMessageRepository_HasSent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &OutboundMessageRepository{DB: db}

	mock.ExpectQuery("SELECT 1 FROM outbound_messages").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM outbound_messages").
		WithArgs(1, 3).
		WillReturnError(sql.ErrNoRows)

	sent, err := repo.HasSent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = repo.HasSent(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestOutboundMessageRepository_FindOutgoingByMessageIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := &OutboundMessageRepository{DB: db}
	now := time.Now()

	rows := sqlmock.NewRows(messageRowColumns).AddRow(
		8, 1, 2, 5, "Hello", "Body", "SENT", "", false,
		"abc@example.com", "", "", "me@example.com", "lead@example.com", nil,
		now, nil, now,
	)
	mock.ExpectQuery("WHERE message_id = ANY\\(\\$1\\) AND NOT is_incoming").
		WithArgs(pq.Array([]string{"abc@example.com", "other@example.com"})).
		WillReturnRows(rows)

	msg, err := repo.FindOutgoingByMessageIDs(context.Background(), []string{"<abc@example.com>", "other@example.com"})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 8, msg.ID)
	require.NotNil(t, msg.DraftID)
	assert.Equal(t, 5, *msg.DraftID)
	assert.Nil(t, msg.ReplyToID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboundMessageRepository_FindOutgoingByMessageIDs_Empty(t *testing.T) {
	repo := &OutboundMessageRepository{}
	msg, err := repo.FindOutgoingByMessageIDs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "a@b", NormalizeMessageID("<a@b>"))
	assert.Equal(t, "a@b", NormalizeMessageID("  a@b "))
	assert.Equal(t, "", NormalizeMessageID("<>"))
}
