package model

import "time"

// CachedAnswer is a previously used answer to a free-text question.
type CachedAnswer struct {
	Question string    `json:"question_text"`
	Answer   string    `json:"answer"`
	LastUsed time.Time `json:"last_used"`
	UseCount int       `json:"use_count"`
}

// CachedResponse stores a user's past form answers: standard-question keys
// map straight to values, free-text questions carry usage metadata. Seeded
// into later analyses so repeat questions skip the AI round trip.
type CachedResponse struct {
	UserID    string                                `gorm:"primaryKey;type:VARCHAR(255)"`
	Standard  *JSONField[map[string]string]         `gorm:"type:jsonb"`
	Custom    *JSONField[map[string]CachedAnswer]   `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (c *CachedResponse) StandardValues() map[string]string {
	if c == nil || c.Standard == nil {
		return nil
	}
	return c.Standard.Data
}

func (c *CachedResponse) CustomAnswers() map[string]CachedAnswer {
	if c == nil || c.Custom == nil {
		return nil
	}
	return c.Custom.Data
}
