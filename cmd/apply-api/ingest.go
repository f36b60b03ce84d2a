package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/config"
	"github.com/hireloop/apply-planner/internal/ingest"
	"github.com/hireloop/apply-planner/internal/ratelimit"
	"github.com/hireloop/apply-planner/internal/store"
)

var companiesFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Refresh the job catalog from the upstream board API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		cleanup := initLogger(cfg)
		defer cleanup()

		zap.S().Info("Starting catalog ingestion")

		if companiesFile == "" {
			companiesFile = cfg.Catalog.CompaniesFile
		}
		companies, err := ingest.LoadCompanies(companiesFile)
		if err != nil {
			zap.S().Fatalw("loading companies", "file", companiesFile, "error", err)
		}

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		embedder, err := ai.NewClient(ai.Config{
			BaseURL:        cfg.AI.OllamaBaseUrl,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			GenerateModel:  cfg.AI.GenerateModel,
		})
		if err != nil {
			zap.S().Fatalw("initializing embedder", "error", err)
		}

		boardClient := ingest.NewBoardClient(
			cfg.Catalog.BoardAPIBaseUrl,
			ratelimit.New("board_api", cfg.Catalog.CatalogRPS, cfg.Catalog.CatalogBurst),
		)
		embeddingLimiter := ratelimit.New("embedding", cfg.Catalog.EmbeddingRPS, cfg.Catalog.EmbeddingBurst)

		pipeline := ingest.NewPipeline(s, boardClient, embedder, embeddingLimiter, ingest.PipelineConfig{
			JobsPerCompany: cfg.Catalog.JobsPerCompany,
			Concurrency:    cfg.Catalog.FetchConcurrency,
			Pacing:         cfg.Catalog.CompanyPacing,
		})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		summary := pipeline.Run(ctx, companies)
		zap.S().Infow("catalog ingestion finished",
			"companies", summary.CompaniesTotal,
			"companies_with_postings", summary.CompaniesWithPostings,
			"postings_stored", summary.PostingsStored,
			"postings_deactivated", summary.PostingsDeactivated)

		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVarP(&companiesFile, "companies", "f", "", "Path to the companies JSON file")
}
