package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/automation"
)

// Client wraps the Ollama API for both embeddings and field-value
// recommendations.
type Client struct {
	api            *api.Client
	embeddingModel string
	generateModel  string
}

var (
	_ Recommender = (*Client)(nil)
	_ Embedder    = (*Client)(nil)
)

type Config struct {
	BaseURL        string
	EmbeddingModel string
	GenerateModel  string
	HTTPClient     *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		api:            api.NewClient(u, httpClient),
		embeddingModel: cfg.EmbeddingModel,
		generateModel:  cfg.GenerateModel,
	}, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return ZeroVector(), nil
	}

	resp, err := c.api.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}

	vec := resp.Embeddings[0]
	if len(vec) > EmbeddingDimension {
		vec = vec[:EmbeddingDimension]
	}
	for len(vec) < EmbeddingDimension {
		vec = append(vec, 0)
	}
	return vec, nil
}

func (c *Client) RecommendFields(ctx context.Context, job JobContext, seed Seed, fields []automation.Field) ([]FieldRecommendation, error) {
	prompt, err := buildRecommendationPrompt(job, seed, fields)
	if err != nil {
		return nil, err
	}

	stream := false
	var out strings.Builder
	err = c.api.Generate(ctx, &api.GenerateRequest{
		Model:  c.generateModel,
		Prompt: prompt,
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recommendation request: %w", err)
	}

	recs, err := parseRecommendations(out.String())
	if err != nil {
		zap.S().Named("ai").Warnw("unparseable recommendation payload", "error", err)
		return nil, err
	}
	return recs, nil
}

type promptField struct {
	FieldID  string   `json:"field_id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

func buildRecommendationPrompt(job JobContext, seed Seed, fields []automation.Field) (string, error) {
	pf := make([]promptField, 0, len(fields))
	for _, f := range fields {
		pf = append(pf, promptField{
			FieldID:  f.FieldID,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Options:  f.Options,
		})
	}
	encoded, err := json.Marshal(pf)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are filling a job application form. Job context:\n")
	fmt.Fprintf(&b, "Title: %s\nCompany: %s\n", job.Title, job.CompanyName)
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	if job.Department != "" {
		fmt.Fprintf(&b, "Department: %s\n", job.Department)
	}
	if len(seed.Standard) > 0 || len(seed.Custom) > 0 {
		b.WriteString("\nThe applicant has answered these before; stay consistent with them:\n")
		for _, m := range []map[string]string{seed.Standard, seed.Custom} {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "%s: %s\n", k, m[k])
			}
		}
	}

	b.WriteString("\nForm fields as JSON:\n")
	b.Write(encoded)
	b.WriteString("\n\nReturn a JSON object {\"recommendations\": [{\"field_id\": string, \"value\": string, \"confidence\": number 0..1}]}. ")
	b.WriteString("For select fields the value must be one of the listed options. Leave out fields you cannot answer.")
	return b.String(), nil
}

func parseRecommendations(payload string) ([]FieldRecommendation, error) {
	var wrapper struct {
		Recommendations []FieldRecommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
		return nil, fmt.Errorf("decoding recommendations: %w", err)
	}

	recs := wrapper.Recommendations[:0]
	for _, r := range wrapper.Recommendations {
		if r.FieldID == "" {
			continue
		}
		if r.Confidence < 0 {
			r.Confidence = 0
		}
		if r.Confidence > 1 {
			r.Confidence = 1
		}
		recs = append(recs, r)
	}
	return recs, nil
}
