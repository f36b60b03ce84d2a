package v1alpha1

import "time"

// Application lifecycle statuses.
const (
	StatusAnalyzing           = "analyzing"
	StatusPendingReview       = "pending_review"
	StatusSubmitting          = "submitting"
	StatusPendingVerification = "pending_verification"
	StatusSubmitted           = "submitted"
	StatusFailed              = "failed"
	StatusExpired             = "expired"
	StatusCancelled           = "cancelled"
)

// Submit result kinds returned on top of the application status.
const (
	SubmitResultSubmitted           = "submitted"
	SubmitResultAlreadySubmitted    = "already_submitted"
	SubmitResultPendingVerification = "pending_verification"
	SubmitResultFailed              = "failed"
)

// Field value sources.
const (
	FieldSourceProfile = "profile"
	FieldSourceCached  = "cached"
	FieldSourceAI      = "ai"
	FieldSourceManual  = "manual"
)

// Form field types.
const (
	FieldTypeText        = "text"
	FieldTypeTextarea    = "textarea"
	FieldTypeSelect      = "select"
	FieldTypeMultiSelect = "multi_select"
	FieldTypeFile        = "file"
	FieldTypeCheckbox    = "checkbox"
	FieldTypeRadio       = "radio"
)

type AnalyzeRequest struct {
	JobID      string `json:"job_id"`
	AutoSubmit bool   `json:"auto_submit"`
}

type SubmitRequest struct {
	FieldOverrides map[string]string `json:"field_overrides,omitempty"`
	SaveResponses  bool              `json:"save_responses"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
}

type VerifyRequest struct {
	Code string `json:"code"`
}

type FormField struct {
	FieldID          string   `json:"field_id"`
	Label            string   `json:"label"`
	Type             string   `json:"field_type"`
	Required         bool     `json:"required"`
	Options          []string `json:"options,omitempty"`
	RecommendedValue string   `json:"recommended_value,omitempty"`
	FinalValue       string   `json:"final_value,omitempty"`
	Source           string   `json:"source"`
	Confidence       float64  `json:"confidence"`
}

type JobInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	URL         string `json:"url"`
}

type AnalyzeResponse struct {
	ApplicationID   string      `json:"application_id"`
	Status          string      `json:"status"`
	ExpiresAt       time.Time   `json:"expires_at"`
	TTLSeconds      int         `json:"ttl_seconds"`
	Job             JobInfo     `json:"job"`
	Fields          []FormField `json:"fields"`
	FormFingerprint string      `json:"form_fingerprint"`
}

type SubmitResponse struct {
	ApplicationID string     `json:"application_id"`
	Status        string     `json:"status"`
	Result        string     `json:"result"`
	Message       string     `json:"message,omitempty"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type VerifyResponse struct {
	ApplicationID    string     `json:"application_id"`
	Status           string     `json:"status"`
	Message          string     `json:"message,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	AttemptsLeft     *int       `json:"attempts_left,omitempty"`
	ExpiresInSeconds *int       `json:"expires_in_seconds,omitempty"`
}

type Application struct {
	ApplicationID string      `json:"application_id"`
	UserID        string      `json:"user_id"`
	JobID         string      `json:"job_id"`
	JobTitle      string      `json:"job_title"`
	CompanyName   string      `json:"company_name"`
	JobURL        string      `json:"job_url"`
	Status        string      `json:"status"`
	AutoSubmit    bool        `json:"auto_submit"`
	Fields        []FormField `json:"fields,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Error         string      `json:"error,omitempty"`
}

type ApplicationList struct {
	Applications []Application `json:"applications"`
	Total        int64         `json:"total"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
}

type JobPosting struct {
	PostingID    string     `json:"posting_id"`
	CompanyToken string     `json:"company_token"`
	CompanyName  string     `json:"company_name"`
	Title        string     `json:"title"`
	Location     *string    `json:"location"`
	Department   *string    `json:"department"`
	URL          string     `json:"url"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Active       bool       `json:"active"`
}

type JobPostingList struct {
	Jobs  []JobPosting `json:"jobs"`
	Total int64        `json:"total"`
}

type Error struct {
	Message string `json:"message"`
}

type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Sessions int    `json:"verification_sessions"`
}
