package models

import "github.com/stevi10623-crypto/deductly-intake/internal/intake"

type IntakeStatus string

const (
	StatusNotStarted IntakeStatus = "not_started"
	StatusInProgress IntakeStatus = "in_progress"
	StatusSubmitted  IntakeStatus = "submitted"
	StatusReviewed   IntakeStatus = "reviewed"
)

// Valid reports whether s is a known status.
func (s IntakeStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusSubmitted, StatusReviewed:
		return true
	}
	return false
}

// Intake is one client's questionnaire for one tax year. Token is the
// client-facing access secret; Data holds the whole answer set.
type Intake struct {
	ID          string           `json:"id"`
	ClientID    string           `json:"clientId"`
	Token       string           `json:"token"`
	TaxYear     int              `json:"taxYear"`
	Status      IntakeStatus     `json:"status"`
	Data        intake.AnswerSet `json:"data"`
	Version     int64            `json:"version"`
	SubmittedAt string           `json:"submittedAt,omitempty"`
	CreatedAt   string           `json:"createdAt"`
	UpdatedAt   string           `json:"updatedAt"`
}
