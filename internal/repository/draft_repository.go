package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type DraftRepositoryInterface interface {
	Create(ctx context.Context, d *model.Draft) error
	GetByID(ctx context.Context, id int) (*model.Draft, error)
	Update(ctx context.Context, id int, upd model.DraftUpdate) (*model.Draft, error)
	Delete(ctx context.Context, id int) error
	// ListActive returns active non-reply drafts for the campaign, or the global
	// library when campaignID is nil. An empty tone matches every tone.
	ListActive(ctx context.Context, campaignID *int, useCase model.UseCase, tone string) ([]model.Draft, error)
	// FindBest returns the best performing active draft ordered by replies, sends, then recency.
	// An empty tone matches every tone.
	FindBest(ctx context.Context, campaignID *int, useCase model.UseCase, tone string) (*model.Draft, error)
	ListByCampaign(ctx context.Context, campaignID int) ([]model.Draft, error)
	IncrementSentCount(ctx context.Context, id int) error
	IncrementReplyCount(ctx context.Context, id int) error
	// ReplaceReplyDraft deletes any reply draft for the lead in the campaign and stores d in its place.
	ReplaceReplyDraft(ctx context.Context, d *model.Draft) error
	GetReplyDraft(ctx context.Context, campaignID, leadID int) (*model.Draft, error)
	DeleteReplyDraft(ctx context.Context, campaignID, leadID int) (bool, error)
}

type DraftRepository struct {
	DB *sql.DB
}

const draftColumns = `id, campaign_id, lead_id, is_reply_draft, subject, body, tone, use_case,
        version, is_active, sent_count, reply_count, created_at, updated_at`

const draftInsert = `
        INSERT INTO drafts (campaign_id, lead_id, is_reply_draft, subject, body, tone, use_case,
            version, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `

func scanDraft(row interface{ Scan(...any) error }) (*model.Draft, error) {
	var d model.Draft
	var campaignID, leadID sql.NullInt64
	if err := row.Scan(
		&d.ID, &campaignID, &leadID, &d.IsReplyDraft, &d.Subject, &d.Body, &d.Tone, &d.UseCase,
		&d.Version, &d.IsActive, &d.SentCount, &d.ReplyCount, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.CampaignID = intPtr(campaignID)
	d.LeadID = intPtr(leadID)
	return &d, nil
}

func scanDrafts(rows *sql.Rows) ([]model.Draft, error) {
	defer rows.Close()
	drafts := []model.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

func prepareDraft(d *model.Draft) {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Version == 0 {
		d.Version = 1
	}
	if d.UseCase == "" {
		d.UseCase = model.UseCaseInitial
	}
	if d.Tone == "" {
		d.Tone = "professional"
	}
	d.IsActive = true
}

func draftArgs(d *model.Draft) []any {
	return []any{
		nullInt(d.CampaignID), nullInt(d.LeadID), d.IsReplyDraft, d.Subject, d.Body, d.Tone, d.UseCase,
		d.Version, d.IsActive, d.CreatedAt, d.UpdatedAt,
	}
}

func (r *DraftRepository) Create(ctx context.Context, d *model.Draft) error {
	prepareDraft(d)
	if err := r.DB.QueryRowContext(ctx, draftInsert, draftArgs(d)...).Scan(&d.ID); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (r *DraftRepository) GetByID(ctx context.Context, id int) (*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`
	d, err := scanDraft(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDraftNotFound(id)
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

// Update applies the non-nil fields and bumps the version.
func (r *DraftRepository) Update(ctx context.Context, id int, upd model.DraftUpdate) (*model.Draft, error) {
	query := `
        UPDATE drafts SET
            subject = COALESCE($1, subject),
            body = COALESCE($2, body),
            tone = COALESCE($3, tone),
            version = version + 1,
            updated_at = NOW()
        WHERE id = $4
        RETURNING ` + draftColumns
	d, err := scanDraft(r.DB.QueryRowContext(ctx, query, upd.Subject, upd.Body, upd.Tone, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDraftNotFound(id)
		}
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewDraftNotFound(id)
	}
	return nil
}

func (r *DraftRepository) ListActive(ctx context.Context, campaignID *int, useCase model.UseCase, tone string) ([]model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts
        WHERE is_active AND NOT is_reply_draft AND use_case = $1 AND ($2 = '' OR tone = $2)`
	args := []any{useCase, tone}
	if campaignID != nil {
		query += ` AND campaign_id = $3`
		args = append(args, *campaignID)
	} else {
		query += ` AND campaign_id IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active drafts: %w", err)
	}
	return scanDrafts(rows)
}

func (r *DraftRepository) FindBest(ctx context.Context, campaignID *int, useCase model.UseCase, tone string) (*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts
        WHERE is_active AND NOT is_reply_draft AND use_case = $1 AND ($2 = '' OR tone = $2)`
	args := []any{useCase, tone}
	if campaignID != nil {
		query += ` AND campaign_id = $3`
		args = append(args, *campaignID)
	} else {
		query += ` AND campaign_id IS NULL`
	}
	query += ` ORDER BY reply_count DESC, sent_count DESC, created_at DESC LIMIT 1`

	d, err := scanDraft(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDraftNotFound(0)
		}
		return nil, fmt.Errorf("find best draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepository) ListByCampaign(ctx context.Context, campaignID int) ([]model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE campaign_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign drafts: %w", err)
	}
	return scanDrafts(rows)
}

func (r *DraftRepository) IncrementSentCount(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE drafts SET sent_count = sent_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment draft sent count: %w", err)
	}
	return nil
}

func (r *DraftRepository) IncrementReplyCount(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE drafts SET reply_count = reply_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment draft reply count: %w", err)
	}
	return nil
}

func (r *DraftRepository) ReplaceReplyDraft(ctx context.Context, d *model.Draft) error {
	if d.CampaignID == nil || d.LeadID == nil {
		return fmt.Errorf("reply draft needs both campaign and lead")
	}
	d.IsReplyDraft = true
	d.UseCase = model.UseCaseReply
	prepareDraft(d)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply draft tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM drafts WHERE campaign_id = $1 AND lead_id = $2 AND is_reply_draft`,
		*d.CampaignID, *d.LeadID,
	); err != nil {
		return fmt.Errorf("delete previous reply draft: %w", err)
	}
	if err := tx.QueryRowContext(ctx, draftInsert, draftArgs(d)...).Scan(&d.ID); err != nil {
		return fmt.Errorf("insert reply draft: %w", err)
	}
	return tx.Commit()
}

func (r *DraftRepository) GetReplyDraft(ctx context.Context, campaignID, leadID int) (*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts
        WHERE campaign_id = $1 AND lead_id = $2 AND is_reply_draft`
	d, err := scanDraft(r.DB.QueryRowContext(ctx, query, campaignID, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewDraftNotFound(0)
		}
		return nil, fmt.Errorf("get reply draft: %w", err)
	}
	return d, nil
}

func (r *DraftRepository) DeleteReplyDraft(ctx context.Context, campaignID, leadID int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM drafts WHERE campaign_id = $1 AND lead_id = $2 AND is_reply_draft`, campaignID, leadID)
	if err != nil {
		return false, fmt.Errorf("delete reply draft: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

var _ DraftRepositoryInterface = (*DraftRepository)(nil)
