package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hireloop/apply-planner/internal/store/model"
)

type Job interface {
	Upsert(ctx context.Context, posting model.JobPosting) (*model.JobPosting, error)
	Get(ctx context.Context, companyToken, postingID string) (*model.JobPosting, error)
	List(ctx context.Context, filter *JobQueryFilter) (model.JobPostingList, int64, error)
	DeactivateMissing(ctx context.Context, companyToken string, seenPostingIDs []string) (int64, error)
	InitialMigration() error
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.JobPosting{})
}

// Upsert inserts or refreshes one posting keyed by (company token, posting
// id). Re-running with identical upstream data only bumps updated_at.
func (s *JobStore) Upsert(ctx context.Context, posting model.JobPosting) (*model.JobPosting, error) {
	result := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_token"}, {Name: "posting_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_name", "title", "location", "department",
			"description_html", "description_text", "absolute_url",
			"upstream_updated_at", "active", "embedding", "updated_at",
		}),
	}).Create(&posting)
	if result.Error != nil {
		return nil, fmt.Errorf("upserting job posting: %w", result.Error)
	}
	return &posting, nil
}

func (s *JobStore) Get(ctx context.Context, companyToken, postingID string) (*model.JobPosting, error) {
	var posting model.JobPosting
	result := s.getDB(ctx).First(&posting, "company_token = ? AND posting_id = ?", companyToken, postingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job posting: %w", result.Error)
	}
	return &posting, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter) (model.JobPostingList, int64, error) {
	tx := s.getDB(ctx).Model(&model.JobPosting{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	var total int64
	if result := tx.Count(&total); result.Error != nil {
		return nil, 0, result.Error
	}

	var postings model.JobPostingList
	if result := tx.Order("company_token, posting_id").Find(&postings); result.Error != nil {
		return nil, 0, result.Error
	}
	return postings, total, nil
}

// DeactivateMissing flags previously-active postings for the company that
// were not seen in the latest fetch. Rows are never deleted.
func (s *JobStore) DeactivateMissing(ctx context.Context, companyToken string, seenPostingIDs []string) (int64, error) {
	tx := s.getDB(ctx).Model(&model.JobPosting{}).
		Where("company_token = ? AND active = ?", companyToken, true)
	if len(seenPostingIDs) > 0 {
		tx = tx.Where("posting_id NOT IN ?", seenPostingIDs)
	}

	result := tx.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivating postings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
