package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hireloop/apply-planner/internal/store/model"
)

type Application interface {
	Create(ctx context.Context, app model.Application) (*model.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Application, error)
	FirstNonTerminal(ctx context.Context, userID, companyToken, postingID string) (*model.Application, error)
	List(ctx context.Context, filter *ApplicationQueryFilter, opts *ApplicationQueryOptions) (model.ApplicationList, int64, error)
	Update(ctx context.Context, app model.Application) (*model.Application, error)
	UpdateGuarded(ctx context.Context, app model.Application, fromStatus string) (*model.Application, error)
	InitialMigration() error
}

type ApplicationStore struct {
	db *gorm.DB
}

// Make sure we conform to Application interface
var _ Application = (*ApplicationStore)(nil)

func NewApplicationStore(db *gorm.DB) Application {
	return &ApplicationStore{db: db}
}

func (s *ApplicationStore) InitialMigration() error {
	if err := s.db.AutoMigrate(&model.Application{}); err != nil {
		return err
	}
	// Partial unique index backing the one-in-flight-application rule. The
	// transactional guard in the service reads first for a friendly error;
	// this closes the window between two concurrent creates.
	return s.db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS applications_one_inflight_idx " +
			"ON applications(user_id, company_token, posting_id) " +
			"WHERE status IN ('analyzing', 'pending_review', 'submitting', 'pending_verification')",
	).Error
}

func (s *ApplicationStore) Create(ctx context.Context, app model.Application) (*model.Application, error) {
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	result := s.getDB(ctx).Create(&app)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating application: %w", result.Error)
	}
	return &app, nil
}

func (s *ApplicationStore) Get(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	result := s.getDB(ctx).First(&app, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying application: %w", result.Error)
	}
	return &app, nil
}

// FirstNonTerminal finds the single in-flight application for (user, job),
// if any. Used as the duplicate guard on analyze.
func (s *ApplicationStore) FirstNonTerminal(ctx context.Context, userID, companyToken, postingID string) (*model.Application, error) {
	var app model.Application
	result := s.getDB(ctx).
		Where("user_id = ? AND company_token = ? AND posting_id = ?", userID, companyToken, postingID).
		Where("status IN ?", model.NonTerminalStatuses).
		First(&app)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying application: %w", result.Error)
	}
	return &app, nil
}

func (s *ApplicationStore) List(ctx context.Context, filter *ApplicationQueryFilter, opts *ApplicationQueryOptions) (model.ApplicationList, int64, error) {
	tx := s.getDB(ctx).Model(&model.Application{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	var total int64
	if result := tx.Count(&total); result.Error != nil {
		return nil, 0, result.Error
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	var apps model.ApplicationList
	if result := tx.Find(&apps); result.Error != nil {
		return nil, 0, result.Error
	}
	return apps, total, nil
}

func (s *ApplicationStore) Update(ctx context.Context, app model.Application) (*model.Application, error) {
	app.UpdatedAt = time.Now().UTC()
	result := s.getDB(ctx).Model(&model.Application{}).
		Where("id = ?", app.ID).
		Select("*").Omit("id", "created_at").
		Updates(&app)
	if result.Error != nil {
		return nil, fmt.Errorf("updating application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return &app, nil
}

// UpdateGuarded persists the application only when its stored status still
// equals fromStatus. A concurrent transition makes the guard miss and the
// caller observes ErrConcurrentUpdate instead of overwriting the winner.
func (s *ApplicationStore) UpdateGuarded(ctx context.Context, app model.Application, fromStatus string) (*model.Application, error) {
	app.UpdatedAt = time.Now().UTC()
	result := s.getDB(ctx).Model(&model.Application{}).
		Where("id = ? AND status = ?", app.ID, fromStatus).
		Select("*").Omit("id", "created_at").
		Updates(&app)
	if result.Error != nil {
		return nil, fmt.Errorf("updating application: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}
	return &app, nil
}

func (s *ApplicationStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
