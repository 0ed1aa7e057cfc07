package domain

import (
	"fmt"
	"time"
)

// CaseStatus is the investigation state of a case. Transitions are
// human-driven only: NEW -> UNDER_REVIEW -> CLOSED. Nothing in the
// engine ever moves a case to CLOSED automatically.
type CaseStatus string

const (
	StatusNew         CaseStatus = "NEW"
	StatusUnderReview CaseStatus = "UNDER_REVIEW"
	StatusClosed      CaseStatus = "CLOSED"
)

// legalTransitions is the full state machine. Anything not listed is
// rejected with ErrBadTransition.
var legalTransitions = map[CaseStatus]CaseStatus{
	StatusNew:         StatusUnderReview,
	StatusUnderReview: StatusClosed,
}

// CanTransition reports whether from -> to is a legal human transition.
func CanTransition(from, to CaseStatus) bool {
	return legalTransitions[from] == to
}

// Case is a transaction promoted to investigator-visible status.
// It exclusively owns its MetaScore and references (not owns) the
// contributing module scores.
type Case struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	TransactionID string `json:"transactionId"`

	Meta   MetaScore     `json:"meta"`
	Scores []ModuleScore `json:"scores"`

	// Transaction attributes carried for triage and reporting.
	Amount     float64   `json:"amount"`
	Department string    `json:"department,omitempty"`
	VendorID   string    `json:"vendorId,omitempty"`
	OfficialID string    `json:"officialId,omitempty"`
	Date       time.Time `json:"date"`

	// Priority ranks equally risky cases by exposure: weighted score
	// plus a sub-linear amount factor.
	Priority float64 `json:"priority"`

	Status CaseStatus `json:"status"`

	// Supersede links. When fresh scores arrive for a case already
	// under human review, a new case is created instead of mutating
	// the reviewed one; the two reference each other.
	Supersedes   string `json:"supersedes,omitempty"`
	SupersededBy string `json:"supersededBy,omitempty"`

	// Tags attached by triage rules (routing hints, never actions).
	Tags []string `json:"tags,omitempty"`

	ClaimedBy  string `json:"claimedBy,omitempty"`
	ClosedBy   string `json:"closedBy,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Claim transitions the case from NEW to UNDER_REVIEW on behalf of an
// investigator.
func (c *Case) Claim(investigator string, now time.Time) error {
	if investigator == "" {
		return fmt.Errorf("%w: investigator is required", ErrBadTransition)
	}
	if !CanTransition(c.Status, StatusUnderReview) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, StatusUnderReview)
	}
	c.Status = StatusUnderReview
	c.ClaimedBy = investigator
	c.UpdatedAt = now
	return nil
}

// Close transitions the case from UNDER_REVIEW to CLOSED with the
// investigator's resolution note.
func (c *Case) Close(investigator, resolution string, now time.Time) error {
	if investigator == "" {
		return fmt.Errorf("%w: investigator is required", ErrBadTransition)
	}
	if !CanTransition(c.Status, StatusClosed) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.Status, StatusClosed)
	}
	c.Status = StatusClosed
	c.ClosedBy = investigator
	c.Resolution = resolution
	c.UpdatedAt = now
	return nil
}
