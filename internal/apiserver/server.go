package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/ai"
	"github.com/hireloop/apply-planner/internal/auth"
	"github.com/hireloop/apply-planner/internal/automation"
	"github.com/hireloop/apply-planner/internal/config"
	"github.com/hireloop/apply-planner/internal/handlers"
	v1alpha1 "github.com/hireloop/apply-planner/internal/handlers/v1alpha1"
	"github.com/hireloop/apply-planner/internal/service"
	"github.com/hireloop/apply-planner/internal/session"
	"github.com/hireloop/apply-planner/internal/store"
	"github.com/hireloop/apply-planner/pkg/metrics"
	"github.com/hireloop/apply-planner/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg         *config.Config
	store       store.Store
	keeper      *session.Keeper
	automator   automation.FormAutomator
	recommender ai.Recommender
	listener    net.Listener
}

// New returns a new instance of the apply-planner API server.
func New(
	cfg *config.Config,
	store store.Store,
	keeper *session.Keeper,
	automator automation.FormAutomator,
	recommender ai.Recommender,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:         cfg,
		store:       store,
		keeper:      keeper,
		automator:   automator,
		recommender: recommender,
		listener:    listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	log := zap.S().Named("api_server")
	log.Info("Initializing API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()
	metrics.RegisterMetrics()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	appService := service.NewApplicationService(
		s.store,
		s.keeper,
		s.automator,
		s.recommender,
		s.cfg.Service.ReviewTTL,
		s.cfg.Service.VerifyAttemptCap,
		s.cfg.Service.CollaboratorTimeout,
	)
	jobService := service.NewJobService(s.store)

	h := v1alpha1.NewServiceHandler(appService, jobService)
	healthHandler := handlers.NewHealthHandler(s.store, s.keeper)
	authenticator := auth.NewHeaderAuthenticator()

	router.Get("/health", healthHandler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticator.Authenticator)

		r.Get("/jobs", h.ListJobs)

		r.Route("/applications", func(r chi.Router) {
			r.Post("/analyze", h.AnalyzeApplication)
			r.Get("/", h.ListApplications)
			r.Get("/{id}", h.GetApplication)
			r.Post("/{id}/submit", h.SubmitApplication)
			r.Post("/{id}/verify", h.VerifyApplication)
			r.Delete("/{id}", h.CancelApplication)
		})
	})

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		log.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		log.Info("api server terminated")
	}()

	log.Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
