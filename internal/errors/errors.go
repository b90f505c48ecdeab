// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySent means the lead already has a SENT outbound row in the campaign.
	ErrAlreadySent = errors.New("message already sent to this lead in this campaign")
	// ErrDuplicateMessage means a row with the same transport message id exists.
	ErrDuplicateMessage = errors.New("message id already stored")
	// ErrCampaignBusy means another run holds the campaign lock.
	ErrCampaignBusy = errors.New("campaign is already being processed")
	// ErrNoDraft means no draft could be found or generated.
	ErrNoDraft = errors.New("no draft available")
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrLeadNotFound struct {
	LeadID int
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead with ID %d not found", e.LeadID)
}

func NewLeadNotFound(id int) error {
	return &ErrLeadNotFound{LeadID: id}
}

type ErrDraftNotFound struct {
	DraftID int
}

func (e *ErrDraftNotFound) Error() string {
	if e.DraftID == 0 {
		return "draft not found"
	}
	return fmt.Sprintf("draft with ID %d not found", e.DraftID)
}

func NewDraftNotFound(id int) error {
	return &ErrDraftNotFound{DraftID: id}
}

// ErrInvalidInput reports a request that fails validation.
type ErrInvalidInput struct {
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return e.Reason
}

func NewInvalidInput(reason string) error {
	return &ErrInvalidInput{Reason: reason}
}

func IsInvalidInput(err error) bool {
	var e *ErrInvalidInput
	return errors.As(err, &e)
}

// IsNotFound reports whether err wraps any of the not-found errors above.
func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var l *ErrLeadNotFound
	var d *ErrDraftNotFound
	return errors.As(err, &c) || errors.As(err, &l) || errors.As(err, &d)
}
