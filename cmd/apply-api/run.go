package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/apiserver"
	"github.com/hireloop/apply-planner/internal/automation/greenhouse"
	"github.com/hireloop/apply-planner/internal/config"
	"github.com/hireloop/apply-planner/internal/session"
	"github.com/hireloop/apply-planner/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the apply-planner api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		cleanup := initLogger(cfg)
		defer cleanup()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		automator, err := greenhouse.NewDriver()
		if err != nil {
			zap.S().Fatalw("initializing form automator", "error", err)
		}
		defer func() { _ = automator.Close() }()

		recommender, err := ai.NewClient(ai.Config{
			BaseURL:        cfg.AI.OllamaBaseUrl,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			GenerateModel:  cfg.AI.GenerateModel,
		})
		if err != nil {
			zap.S().Fatalw("initializing recommender", "error", err)
		}

		keeper := session.NewKeeper(cfg.Service.SessionTTL)
		defer keeper.Shutdown()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			zap.S().Fatalw("creating listener", "error", err)
		}

		server := apiserver.New(cfg, s, keeper, automator, recommender, listener)
		if err := server.Run(ctx); err != nil {
			zap.S().Fatalw("running server", "error", err)
		}

		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
