package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/ratelimit"
	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/internal/store/model"
	"github.com/hireloop/apply-planner/pkg/metrics"
)

// Pipeline runs the catalog ingestion cycle: fetch, transform, embed, upsert
// and deactivate, one company at a time. A company's failure never aborts
// the run.
type Pipeline struct {
	store            store.Store
	api              BoardAPI
	embedder         ai.Embedder
	embeddingLimiter *ratelimit.Limiter

	jobsPerCompany int
	concurrency    int
	pacing         time.Duration
}

type PipelineConfig struct {
	JobsPerCompany int
	Concurrency    int
	Pacing         time.Duration
}

// Summary reports what one ingestion run did.
type Summary struct {
	CompaniesTotal        int `json:"companies_total"`
	CompaniesWithPostings int `json:"companies_with_postings"`
	PostingsStored        int `json:"postings_stored"`
	PostingsDeactivated   int `json:"postings_deactivated"`
}

func NewPipeline(st store.Store, api BoardAPI, embedder ai.Embedder, embeddingLimiter *ratelimit.Limiter, cfg PipelineConfig) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 5
	}
	return &Pipeline{
		store:            st,
		api:              api,
		embedder:         embedder,
		embeddingLimiter: embeddingLimiter,
		jobsPerCompany:   cfg.JobsPerCompany,
		concurrency:      cfg.Concurrency,
		pacing:           cfg.Pacing,
	}
}

// Run ingests every company sequentially, with a small pacing delay between
// companies to avoid bursting the upstream.
func (p *Pipeline) Run(ctx context.Context, companies []Company) Summary {
	log := zap.S().Named("ingest")
	summary := Summary{CompaniesTotal: len(companies)}

	for i, company := range companies {
		if err := company.validate(); err != nil {
			log.Warnw("skipping company", "error", err)
			continue
		}

		stored, deactivated, err := p.runCompany(ctx, company)
		if err != nil {
			log.Errorw("company ingestion failed", "company", company.DisplayName(), "error", err)
		}
		summary.PostingsStored += stored
		summary.PostingsDeactivated += deactivated
		if stored > 0 {
			summary.CompaniesWithPostings++
		}

		if p.pacing > 0 && i < len(companies)-1 {
			select {
			case <-ctx.Done():
				return summary
			case <-time.After(p.pacing):
			}
		}
	}
	return summary
}

func (p *Pipeline) runCompany(ctx context.Context, company Company) (stored int, deactivated int, err error) {
	log := zap.S().Named("ingest").With("company", company.DisplayName())

	summaries, err := p.api.FetchSummaries(ctx, company.Token, p.jobsPerCompany)
	if err != nil {
		// upstream errors degrade to an empty fetch; the run continues
		log.Warnw("fetching posting summaries failed", "error", err)
		summaries = nil
		err = nil
	}
	log.Infow("fetched posting summaries", "count", len(summaries))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		seenIDs []string
	)
	sem := make(chan struct{}, p.concurrency)

	for _, summary := range summaries {
		wg.Add(1)
		go func(s PostingSummary) {
			defer wg.Done()

			sem <- struct{}{}
			detail, detailErr := p.api.FetchDetail(ctx, company.Token, s.ID)
			<-sem
			if detailErr != nil {
				// dropped, not retried
				log.Warnw("fetching posting detail failed", "posting_id", s.ID, "error", detailErr)
				return
			}

			posting := Transform(detail, company.Token, company.Name)
			posting.Embedding = p.embed(ctx, EmbeddingText(posting))

			if _, upsertErr := p.store.Job().Upsert(ctx, posting); upsertErr != nil {
				log.Errorw("upserting posting failed", "posting_id", posting.PostingID, "error", upsertErr)
				return
			}
			metrics.IncreaseIngestedPostingsTotal(company.Token)

			mu.Lock()
			seenIDs = append(seenIDs, posting.PostingID)
			stored++
			mu.Unlock()
		}(summary)
	}
	wg.Wait()

	n, deactivateErr := p.store.Job().DeactivateMissing(ctx, company.Token, seenIDs)
	if deactivateErr != nil {
		return stored, 0, fmt.Errorf("deactivating stale postings: %w", deactivateErr)
	}
	if n > 0 {
		log.Infow("deactivated stale postings", "count", n)
	}
	return stored, int(n), nil
}

// embed resolves the embedding vector for a posting; any failure degrades to
// the zero vector so catalog ingestion is never blocked on the AI upstream.
func (p *Pipeline) embed(ctx context.Context, text string) *model.JSONField[[]float32] {
	if err := p.embeddingLimiter.Acquire(ctx); err != nil {
		metrics.IncreaseEmbeddingFailuresTotal()
		return model.MakeJSONField(ai.ZeroVector())
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		zap.S().Named("ingest").Warnw("embedding failed, storing zero vector", "error", err)
		metrics.IncreaseEmbeddingFailuresTotal()
		return model.MakeJSONField(ai.ZeroVector())
	}
	return model.MakeJSONField(vec)
}

// LoadCompanies reads the configured companies file.
func LoadCompanies(path string) ([]Company, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading companies file: %w", err)
	}

	var companies []Company
	if err := json.Unmarshal(raw, &companies); err != nil {
		return nil, fmt.Errorf("parsing companies file: %w", err)
	}
	return companies, nil
}
