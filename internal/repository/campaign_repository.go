package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	Update(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error
	// Activate moves a DRAFT campaign to ACTIVE and stamps started_at.
	Activate(ctx context.Context, campaignID int) (bool, error)
	// Complete moves an ACTIVE campaign to COMPLETED and stamps completed_at.
	Complete(ctx context.Context, campaignID int) (bool, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	OldestCreatedAt(ctx context.Context) (*time.Time, error)
	GetCampaignStats(ctx context.Context, campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, description, context, reference, sender_name, status,
        started_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	var started, completed, updated sql.NullTime
	if err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Context, &c.Reference, &c.SenderName, &c.Status,
		&started, &completed, &c.CreatedAt, &updated,
	); err != nil {
		return nil, err
	}
	c.StartedAt = timePtr(started)
	c.CompletedAt = timePtr(completed)
	c.UpdatedAt = timePtr(updated)
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
        INSERT INTO campaigns (name, description, context, reference, sender_name, status, started_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		c.Name, c.Description, c.Context, c.Reference, c.SenderName, c.Status, c.StartedAt, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, description=$2, context=$3, reference=$4, sender_name=$5, updated_at=NOW()
        WHERE id=$6
    `
	res, err := r.DB.ExecContext(ctx, query, c.Name, c.Description, c.Context, c.Reference, c.SenderName, c.ID)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	return nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, status, time.Now(), campaignID)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return nil
}

func (r *CampaignRepository) Activate(ctx context.Context, campaignID int) (bool, error) {
	query := `
        UPDATE campaigns SET status='ACTIVE', started_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status='DRAFT'
    `
	res, err := r.DB.ExecContext(ctx, query, campaignID)
	if err != nil {
		return false, fmt.Errorf("activate campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CampaignRepository) Complete(ctx context.Context, campaignID int) (bool, error) {
	query := `
        UPDATE campaigns SET status='COMPLETED', completed_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status='ACTIVE'
    `
	res, err := r.DB.ExecContext(ctx, query, campaignID)
	if err != nil {
		return false, fmt.Errorf("complete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		countQuery += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// OldestCreatedAt returns the creation time of the oldest campaign, or nil when none exist.
func (r *CampaignRepository) OldestCreatedAt(ctx context.Context) (*time.Time, error) {
	var oldest sql.NullTime
	if err := r.DB.QueryRowContext(ctx, `SELECT MIN(created_at) FROM campaigns`).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("oldest campaign: %w", err)
	}
	return timePtr(oldest), nil
}

func (r *CampaignRepository) GetCampaignStats(ctx context.Context, campaignID int) (map[string]int, error) {
	query := `
        SELECT CASE WHEN is_incoming THEN 'REPLIED' ELSE status END, COUNT(*)
        FROM outbound_messages
        WHERE campaign_id=$1
        GROUP BY 1
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, "SENT": 0, "FAILED": 0, "REPLIED": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
