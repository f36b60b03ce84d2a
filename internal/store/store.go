package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Application() Application
	CachedResponse() CachedResponse
	InitialMigration() error
	Ping() error
	Close() error
}

type DataStore struct {
	db             *gorm.DB
	job            Job
	application    Application
	cachedResponse CachedResponse
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:             db,
		job:            NewJobStore(db),
		application:    NewApplicationStore(db),
		cachedResponse: NewCachedResponseStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Application() Application {
	return s.application
}

func (s *DataStore) CachedResponse() CachedResponse {
	return s.cachedResponse
}

func (s *DataStore) InitialMigration() error {
	if err := s.job.InitialMigration(); err != nil {
		return err
	}
	if err := s.application.InitialMigration(); err != nil {
		return err
	}
	return s.cachedResponse.InitialMigration()
}

func (s *DataStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
