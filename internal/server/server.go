// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built here and handed
// down, so no other package constructs its own collaborators.
//
//	config.Config
//	  -> store (sqlstore for sqlite/pgx, memory for tests and demos)
//	  -> auth.TokenService, auth.PasswordService
//	  -> barcode.Client, vision.Client -> vision.Analyzer
//	  -> service.ItemService, AuthService, IngestService
//	  -> handler.*Handler
//	  -> chi routes
//
// ROUTES:
//
//	GET  /healthz
//	GET  /metrics
//	     /api/v1/auth/{register,login,logout}     public
//	     /api/v1/users/me                          RequireAuth
//	     /api/v1/food-items...                     RequireAuth
//	     /api/v1/barcode/{barcode}[/items]         RequireAuth
//	     /api/v1/image-analysis[/items]            RequireAuth
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/metapantry/internal/auth"
	"github.com/sakif/metapantry/internal/config"
	"github.com/sakif/metapantry/internal/handler"
	"github.com/sakif/metapantry/internal/ingest/barcode"
	"github.com/sakif/metapantry/internal/ingest/vision"
	"github.com/sakif/metapantry/internal/metrics"
	"github.com/sakif/metapantry/internal/middleware"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
	"github.com/sakif/metapantry/internal/repository/memory"
	"github.com/sakif/metapantry/internal/repository/sqlstore"
	"github.com/sakif/metapantry/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Store is what the server needs from a storage backend.
type Store interface {
	repository.ItemStore
	repository.UserRepository
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*sqlstore.DB)(nil)
	_ Store = (*memory.Store)(nil)
)

// Server owns the router and the store. The store is closed when Start returns.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   Store
	metrics *metrics.Metrics

	// passwords is swapped for a cheaper bcrypt cost in tests.
	passwords *auth.PasswordService
}

// New opens the store selected by cfg.DBDriver, creates the bootstrap
// superuser when configured, and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s, err := newServer(ctx, cfg, logger, store, auth.NewPasswordService())
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger, store Store, passwords *auth.PasswordService) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		metrics:   metrics.New(),
		passwords: passwords,
	}
	if err := s.setupRoutes(ctx); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenStore returns the backend for driver ("sqlite", "pgx" or "memory").
func OpenStore(ctx context.Context, driver, dsn string) (Store, error) {
	if driver == "memory" {
		return memory.New(), nil
	}
	dialect, err := sqlstore.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	return sqlstore.Open(ctx, dialect, dsn)
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes(ctx context.Context) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenExpire)
	if err != nil {
		return err
	}
	validate := handler.NewValidator()

	items := service.NewItemService(
		repository.NewScoped[model.FoodItem, model.ItemFilter](s.store, "food item"),
		time.Now,
		s.logger,
	)
	accounts := service.NewAuthService(s.store, tokens, s.passwords, s.logger)

	barcodes := barcode.New(barcode.Config{
		BaseURL: cfg.OpenFoodFactsURL,
		Timeout: cfg.BarcodeTimeout,
	}, s.logger)
	visionClient := vision.NewClient(vision.ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		MaxTokens:  cfg.VisionMaxTokens,
		Timeout:    cfg.VisionTimeout,
		MaxRetries: cfg.VisionMaxRetries,
	}, s.logger)
	if !visionClient.Configured() {
		s.logger.Warn("OPENAI_API_KEY not set; image analysis will return 503")
	}
	ingest := service.NewIngestService(barcodes, vision.NewAnalyzer(visionClient, time.Now, s.logger), items, s.metrics, s.logger)

	if cfg.SuperuserConfigured() {
		if err := s.ensureSuperuser(ctx, accounts); err != nil {
			return err
		}
	}

	itemHandler := handler.NewItemHandler(items, validate, s.logger)
	authHandler := handler.NewAuthHandler(accounts, validate, tokens.TTL(), s.logger)
	ingestHandler := handler.NewIngestHandler(ingest, validate, cfg.MaxUploadBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	// Recoverer sits inside Logger and the metrics middleware so a panic is
	// still logged and counted as a 500.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, s.store, s.logger))

			r.Get("/users/me", authHandler.HandleMe)
			r.Delete("/users/me", authHandler.HandleDeleteMe)

			r.Route("/food-items", func(r chi.Router) {
				r.Get("/", itemHandler.HandleList)
				r.Post("/", itemHandler.HandleCreate)
				r.Get("/expiring-soon", itemHandler.HandleExpiringSoon)
				r.Get("/{id}", itemHandler.HandleGet)
				r.Put("/{id}", itemHandler.HandleUpdate)
				r.Patch("/{id}", itemHandler.HandleUpdate)
				r.Delete("/{id}", itemHandler.HandleDelete)
			})

			r.Get("/barcode/{barcode}", ingestHandler.HandleBarcodeLookup)
			r.Post("/barcode/{barcode}/items", ingestHandler.HandleBarcodeCreate)

			r.Post("/image-analysis", ingestHandler.HandleImageAnalyze)
			r.Post("/image-analysis/items", ingestHandler.HandleImageCreate)
		})
	})

	return nil
}

func (s *Server) ensureSuperuser(ctx context.Context, accounts *service.AuthService) error {
	user, created, err := accounts.EnsureSuperuser(ctx, service.Registration{
		Email:    s.config.FirstSuperuser,
		Username: s.config.FirstSuperuserUsername,
		Password: s.config.FirstSuperuserPassword,
	})
	if err != nil {
		return fmt.Errorf("creating first superuser: %w", err)
	}
	if created {
		s.logger.Info("first superuser created", slog.String("user_id", user.ID), slog.String("email", user.Email))
	}
	return nil
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("db_driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
