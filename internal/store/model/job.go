package model

import (
	"encoding/json"
	"time"
)

// JobPosting is one catalog entry, keyed by the board company token plus the
// platform-assigned posting id. Postings are never deleted; postings missing
// from the latest successful fetch for their company are deactivated so
// existing applications keep a valid reference.
type JobPosting struct {
	CompanyToken      string  `gorm:"primaryKey;type:VARCHAR(255)"`
	PostingID         string  `gorm:"primaryKey;type:VARCHAR(255)"`
	CompanyName       string  `gorm:"not null"`
	Title             string  `gorm:"not null"`
	Location          *string
	Department        *string
	DescriptionHTML   string
	DescriptionText   string
	AbsoluteURL       string
	UpstreamUpdatedAt time.Time
	Active            bool                  `gorm:"index:job_postings_company_active_idx;not null"`
	Embedding         *JSONField[[]float32] `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type JobPostingList []JobPosting

func (j JobPosting) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
