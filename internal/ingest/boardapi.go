package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hireloop/apply-planner/internal/ratelimit"
)

// PostingSummary is one row of the board's job list endpoint.
type PostingSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// PostingDetail is the full payload for one posting. Location and
// departments are kept raw because upstream serves both string and
// nested-object shapes; the transform sorts them out.
type PostingDetail struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	AbsoluteURL string          `json:"absolute_url"`
	UpdatedAt   string          `json:"updated_at"`
	Location    json.RawMessage `json:"location"`
	Departments json.RawMessage `json:"departments"`
}

// BoardAPI fetches posting summaries and details for a company board.
type BoardAPI interface {
	FetchSummaries(ctx context.Context, companyToken string, limit int) ([]PostingSummary, error)
	FetchDetail(ctx context.Context, companyToken string, postingID int64) (*PostingDetail, error)
}

// BoardClient is the HTTP implementation of BoardAPI. Every request goes
// through the catalog rate limiter before it leaves the process.
type BoardClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

var _ BoardAPI = (*BoardClient)(nil)

func NewBoardClient(baseURL string, limiter *ratelimit.Limiter) *BoardClient {
	return &BoardClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

func (c *BoardClient) FetchSummaries(ctx context.Context, companyToken string, limit int) ([]PostingSummary, error) {
	var payload struct {
		Jobs []PostingSummary `json:"jobs"`
	}
	url := fmt.Sprintf("%s/%s/jobs", c.baseURL, companyToken)
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	jobs := payload.Jobs
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (c *BoardClient) FetchDetail(ctx context.Context, companyToken string, postingID int64) (*PostingDetail, error) {
	var detail PostingDetail
	url := fmt.Sprintf("%s/%s/jobs/%d", c.baseURL, companyToken, postingID)
	if err := c.getJSON(ctx, url, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *BoardClient) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
