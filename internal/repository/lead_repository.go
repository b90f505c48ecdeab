package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// LeadRepositoryInterface defines methods used by service
type LeadRepositoryInterface interface {
	Create(ctx context.Context, l *model.Lead) error
	GetByID(ctx context.Context, id int) (*model.Lead, error)
	ListByCampaign(ctx context.Context, campaignID int, statuses []model.OutreachStatus) ([]model.Lead, error)
	CountByCampaign(ctx context.Context, campaignID int, statuses []model.OutreachStatus) (int, error)
	// AttachToCampaign moves the given leads into the campaign as PENDING, skipping
	// leads already attached to it, and returns the ids that were attached.
	AttachToCampaign(ctx context.Context, campaignID int, leadIDs []int) ([]int, error)
	UpdateOutreachStatus(ctx context.Context, id int, status model.OutreachStatus) error
	UpdateStatus(ctx context.Context, id int, status model.LeadStatus) error
	MarkSent(ctx context.Context, id int) error
	OutreachCounts(ctx context.Context, campaignID int) (map[string]int, error)
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, name, email, company, position, status, outreach_status, campaign_id, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*model.Lead, error) {
	var l model.Lead
	var campaignID sql.NullInt64
	if err := row.Scan(
		&l.ID, &l.Name, &l.Email, &l.Company, &l.Position, &l.Status, &l.OutreachStatus,
		&campaignID, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.CampaignID = intPtr(campaignID)
	return &l, nil
}

func statusStrings(statuses []model.OutreachStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *LeadRepository) Create(ctx context.Context, l *model.Lead) error {
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = model.LeadNew
	}
	if l.OutreachStatus == "" {
		l.OutreachStatus = model.OutreachPending
	}
	query := `
        INSERT INTO leads (name, email, company, position, status, outreach_status, campaign_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		l.Name, l.Email, l.Company, l.Position, l.Status, l.OutreachStatus, nullInt(l.CampaignID), l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		if _, dup := violatedConstraint(err); dup {
			return appErrors.NewInvalidInput(fmt.Sprintf("lead with email %s already exists", l.Email))
		}
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// GetByID fetches a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id int) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	l, err := scanLead(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepository) ListByCampaign(ctx context.Context, campaignID int, statuses []model.OutreachStatus) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE campaign_id = $1`
	args := []any{campaignID}
	if len(statuses) > 0 {
		query += ` AND outreach_status = ANY($2)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaign leads: %w", err)
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) CountByCampaign(ctx context.Context, campaignID int, statuses []model.OutreachStatus) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE campaign_id = $1 AND outreach_status = ANY($2)`,
		campaignID, pq.Array(statusStrings(statuses)),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count campaign leads: %w", err)
	}
	return count, nil
}

func (r *LeadRepository) AttachToCampaign(ctx context.Context, campaignID int, leadIDs []int) ([]int, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(leadIDs))
	for i, id := range leadIDs {
		ids[i] = int64(id)
	}
	query := `
        UPDATE leads SET campaign_id = $1, outreach_status = 'PENDING', updated_at = NOW()
        WHERE id = ANY($2) AND campaign_id IS DISTINCT FROM $1
        RETURNING id
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("attach leads: %w", err)
	}
	defer rows.Close()

	attached := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		attached = append(attached, id)
	}
	return attached, rows.Err()
}

func (r *LeadRepository) UpdateOutreachStatus(ctx context.Context, id int, status model.OutreachStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET outreach_status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update lead outreach status: %w", err)
	}
	return nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id int, status model.LeadStatus) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return nil
}

// MarkSent records a successful send: outreach SENT, business status CONTACTED.
func (r *LeadRepository) MarkSent(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE leads SET outreach_status = 'SENT', status = 'CONTACTED', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark lead sent: %w", err)
	}
	return nil
}

func (r *LeadRepository) OutreachCounts(ctx context.Context, campaignID int) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT outreach_status, COUNT(*) FROM leads WHERE campaign_id = $1 GROUP BY outreach_status`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("lead outreach counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
