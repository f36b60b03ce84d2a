package service

import (
	"context"

	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/internal/store/model"
)

// JobFilter narrows catalog listings. Zero value lists all active postings.
type JobFilter struct {
	CompanyToken    string
	IncludeInactive bool
}

type JobService struct {
	store store.Store
}

func NewJobService(store store.Store) *JobService {
	return &JobService{store: store}
}

func (s *JobService) ListJobs(ctx context.Context, filter JobFilter) (model.JobPostingList, int64, error) {
	storeFilter := store.NewJobQueryFilter()
	if filter.CompanyToken != "" {
		storeFilter = storeFilter.ByCompanyToken(filter.CompanyToken)
	}
	if !filter.IncludeInactive {
		storeFilter = storeFilter.ByActive(true)
	}
	return s.store.Job().List(ctx, storeFilter)
}
