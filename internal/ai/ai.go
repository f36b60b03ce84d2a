package ai

import (
	"context"

	"github.com/hireloop/apply-planner/internal/automation"
)

// EmbeddingDimension is the fixed size of catalog embedding vectors.
const EmbeddingDimension = 768

// JobContext carries the posting the recommendations are made for.
type JobContext struct {
	Title       string
	CompanyName string
	Location    string
	Department  string
	Description string
}

// Seed holds a user's previously used answers. They ride along in the
// recommendation prompt so the model stays consistent with what the user
// already answered on other forms.
type Seed struct {
	Standard map[string]string
	Custom   map[string]string
}

// FieldRecommendation is one suggested value for a form field.
type FieldRecommendation struct {
	FieldID    string  `json:"field_id"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Recommender suggests values for extracted form fields.
type Recommender interface {
	RecommendFields(ctx context.Context, job JobContext, seed Seed, fields []automation.Field) ([]FieldRecommendation, error)
}

// Embedder produces fixed-dimension embedding vectors for catalog text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ZeroVector is the best-effort fallback stored when embedding fails;
// catalog ingestion must never block on the embedding upstream.
func ZeroVector() []float32 {
	return make([]float32, EmbeddingDimension)
}
