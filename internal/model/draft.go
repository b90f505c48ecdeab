package model

import "time"

type UseCase string

const (
	UseCaseInitial  UseCase = "initial"
	UseCaseFollowUp UseCase = "followup"
	UseCaseReply    UseCase = "reply"
)

// Draft is a message variant whose subject and body still carry {{placeholder}} tokens.
// A nil CampaignID marks a global library draft. Reply drafts are scoped to a single
// lead and never take part in rotation.
type Draft struct {
	ID           int       `db:"id" json:"id"`
	CampaignID   *int      `db:"campaign_id" json:"campaign_id,omitempty"`
	LeadID       *int      `db:"lead_id" json:"lead_id,omitempty"`
	IsReplyDraft bool      `db:"is_reply_draft" json:"is_reply_draft"`
	Subject      string    `db:"subject" json:"subject"`
	Body         string    `db:"body" json:"body"`
	Tone         string    `db:"tone" json:"tone"`
	UseCase      UseCase   `db:"use_case" json:"use_case"`
	Version      int       `db:"version" json:"version"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	SentCount    int       `db:"sent_count" json:"sent_count"`
	ReplyCount   int       `db:"reply_count" json:"reply_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DraftUpdate carries the editable fields of a draft; nil fields are left as they are.
type DraftUpdate struct {
	Subject *string `json:"subject,omitempty"`
	Body    *string `json:"body,omitempty"`
	Tone    *string `json:"tone,omitempty"`
}

// DraftRequest describes the draft a generator should write.
type DraftRequest struct {
	Tone       string  `json:"tone"`
	UseCase    UseCase `json:"use_case"`
	Context    string  `json:"context,omitempty"`
	Reference  string  `json:"reference,omitempty"`
	SenderName string  `json:"sender_name,omitempty"`
	// OriginalEmail is the message being followed up or replied to.
	OriginalEmail string `json:"original_email,omitempty"`
	// Seed varies wording between drafts of one bulk run.
	Seed int `json:"seed,omitempty"`
}

// DraftContent is a generated subject and body, still carrying placeholders.
type DraftContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
