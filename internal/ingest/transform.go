package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hireloop/apply-planner/internal/store/model"
)

// Transform turns one upstream detail payload into a canonical catalog
// record. Loosely-typed upstream shapes degrade to explicit nulls; a
// malformed timestamp falls back to now.
func Transform(detail *PostingDetail, companyToken, companyName string) model.JobPosting {
	return model.JobPosting{
		CompanyToken:      companyToken,
		PostingID:         strconv.FormatInt(detail.ID, 10),
		CompanyName:       companyName,
		Title:             detail.Title,
		Location:          extractLocation(detail.Location),
		Department:        extractDepartment(detail.Departments),
		DescriptionHTML:   detail.Content,
		DescriptionText:   htmlToText(detail.Content),
		AbsoluteURL:       detail.AbsoluteURL,
		UpstreamUpdatedAt: parseUpstreamTime(detail.UpdatedAt),
		Active:            true,
	}
}

// EmbeddingText builds the labeled source text an embedding is computed
// from.
func EmbeddingText(posting model.JobPosting) string {
	var parts []string
	if posting.Title != "" {
		parts = append(parts, "Title: "+posting.Title)
	}
	if posting.Location != nil {
		parts = append(parts, "Location: "+*posting.Location)
	}
	if posting.Department != nil {
		parts = append(parts, "Department: "+*posting.Department)
	}
	if posting.DescriptionText != "" {
		parts = append(parts, "Description: "+posting.DescriptionText)
	}
	return strings.Join(parts, "\n")
}

// htmlToText reduces an HTML fragment to whitespace-normalized plain text.
func htmlToText(fragment string) string {
	if fragment == "" {
		return ""
	}

	var parts []string
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			if text := strings.TrimSpace(tokenizer.Token().Data); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// extractLocation accepts both `"location": "Remote"` and
// `"location": {"name": "Remote"}`.
func extractLocation(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return &asString
	}

	var asObject struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Name != "" {
		return &asObject.Name
	}
	return nil
}

// extractDepartment takes the first entry of the departments list, which
// upstream serves either as objects or as bare strings.
func extractDepartment(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(entries[0], &asString); err == nil && asString != "" {
		return &asString
	}

	var asObject struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(entries[0], &asObject); err == nil && asObject.Name != "" {
		return &asObject.Name
	}
	return nil
}

func parseUpstreamTime(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// Company is one configured board to ingest.
type Company struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

func (c Company) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Token
}

func (c Company) validate() error {
	if c.Token == "" {
		return fmt.Errorf("company entry is missing a token")
	}
	return nil
}
