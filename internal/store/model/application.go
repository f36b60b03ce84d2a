package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Application status constants.
const (
	ApplicationStatusAnalyzing           = "analyzing"
	ApplicationStatusPendingReview       = "pending_review"
	ApplicationStatusSubmitting          = "submitting"
	ApplicationStatusPendingVerification = "pending_verification"
	ApplicationStatusSubmitted           = "submitted"
	ApplicationStatusFailed              = "failed"
	ApplicationStatusExpired             = "expired"
	ApplicationStatusCancelled           = "cancelled"
)

// NonTerminalStatuses are the statuses an application can still move out of.
// At most one application per (user, job) may hold one of these at a time.
var NonTerminalStatuses = []string{
	ApplicationStatusAnalyzing,
	ApplicationStatusPendingReview,
	ApplicationStatusSubmitting,
	ApplicationStatusPendingVerification,
}

func IsTerminalStatus(status string) bool {
	switch status {
	case ApplicationStatusSubmitted, ApplicationStatusFailed, ApplicationStatusExpired, ApplicationStatusCancelled:
		return true
	}
	return false
}

// FormField is one analyzed form control, embedded in the application's
// fields JSON column. Selector is opaque to everything but the automator.
type FormField struct {
	FieldID          string   `json:"field_id"`
	Selector         string   `json:"selector"`
	Label            string   `json:"label"`
	Type             string   `json:"field_type"`
	Required         bool     `json:"required"`
	Options          []string `json:"options,omitempty"`
	RecommendedValue string   `json:"recommended_value,omitempty"`
	FinalValue       string   `json:"final_value,omitempty"`
	Source           string   `json:"source"`
	Confidence       float64  `json:"confidence"`
}

type Application struct {
	ID              uuid.UUID `gorm:"primaryKey"`
	UserID          string    `gorm:"not null;index:applications_user_job_idx"`
	CompanyToken    string    `gorm:"not null;index:applications_user_job_idx"`
	PostingID       string    `gorm:"not null;index:applications_user_job_idx"`
	JobTitle        string
	CompanyName     string
	JobURL          string
	Status          string `gorm:"not null;index"`
	AutoSubmit      bool
	FormFingerprint string
	Fields          *JSONField[[]FormField] `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     *time.Time
	ExpiresAt       *time.Time
	LastError       *string
	IdempotencyKey  *string
}

type ApplicationList []Application

func (a Application) IsTerminal() bool {
	return IsTerminalStatus(a.Status)
}

func (a Application) FormFields() []FormField {
	if a.Fields == nil {
		return nil
	}
	return a.Fields.Data
}

func (a Application) String() string {
	val, _ := json.Marshal(a)
	return string(val)
}
