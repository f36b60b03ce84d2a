package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hireloop/apply-planner/internal/store/model"
)

type CachedResponse interface {
	Get(ctx context.Context, userID string) (*model.CachedResponse, error)
	Upsert(ctx context.Context, response model.CachedResponse) (*model.CachedResponse, error)
	InitialMigration() error
}

type CachedResponseStore struct {
	db *gorm.DB
}

// Make sure we conform to CachedResponse interface
var _ CachedResponse = (*CachedResponseStore)(nil)

func NewCachedResponseStore(db *gorm.DB) CachedResponse {
	return &CachedResponseStore{db: db}
}

func (s *CachedResponseStore) InitialMigration() error {
	return s.db.AutoMigrate(&model.CachedResponse{})
}

func (s *CachedResponseStore) Get(ctx context.Context, userID string) (*model.CachedResponse, error) {
	var response model.CachedResponse
	result := s.getDB(ctx).First(&response, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying cached responses: %w", result.Error)
	}
	return &response, nil
}

func (s *CachedResponseStore) Upsert(ctx context.Context, response model.CachedResponse) (*model.CachedResponse, error) {
	response.UpdatedAt = time.Now().UTC()
	result := s.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"standard", "custom", "updated_at"}),
	}).Create(&response)
	if result.Error != nil {
		return nil, fmt.Errorf("upserting cached responses: %w", result.Error)
	}
	return &response, nil
}

func (s *CachedResponseStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
