// internal/model/lead.go
package model

import "time"

// LeadStatus is the prospect lifecycle, independent of any campaign.
type LeadStatus string

const (
	LeadNew          LeadStatus = "NEW"
	LeadContacted    LeadStatus = "CONTACTED"
	LeadFollowUp     LeadStatus = "FOLLOW_UP"
	LeadReplied      LeadStatus = "REPLIED"
	LeadUnsubscribed LeadStatus = "UNSUBSCRIBED"
	LeadBounced      LeadStatus = "BOUNCED"
)

// OutreachStatus is the send lifecycle of a lead inside its current campaign.
type OutreachStatus string

const (
	OutreachPending    OutreachStatus = "PENDING"
	OutreachProcessing OutreachStatus = "PROCESSING"
	OutreachSent       OutreachStatus = "SENT"
	OutreachFailed     OutreachStatus = "FAILED"
	OutreachSkipped    OutreachStatus = "SKIPPED"
)

// OpenOutreach lists the outreach statuses the orchestrator still has to act on.
var OpenOutreach = []OutreachStatus{OutreachPending, OutreachProcessing}

type Lead struct {
	ID             int            `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Email          string         `db:"email" json:"email"`
	Company        string         `db:"company" json:"company,omitempty"`
	Position       string         `db:"position" json:"position,omitempty"`
	Status         LeadStatus     `db:"status" json:"status"`
	OutreachStatus OutreachStatus `db:"outreach_status" json:"outreach_status"`
	CampaignID     *int           `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
