package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/leafscan/internal/application"
	"github.com/bryanwahyu/leafscan/internal/application/analysis"
	"github.com/bryanwahyu/leafscan/internal/config"
	"github.com/bryanwahyu/leafscan/internal/domain/classification"
	"github.com/bryanwahyu/leafscan/internal/domain/session"
	"github.com/bryanwahyu/leafscan/internal/infra/ai/openai"
	"github.com/bryanwahyu/leafscan/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/leafscan/internal/infra/db/mysql"
	"github.com/bryanwahyu/leafscan/internal/infra/db/postgres"
	"github.com/bryanwahyu/leafscan/internal/infra/httpserver"
	"github.com/bryanwahyu/leafscan/internal/infra/inference"
	"github.com/bryanwahyu/leafscan/internal/infra/notify"
	"github.com/bryanwahyu/leafscan/internal/infra/storage"
	"github.com/bryanwahyu/leafscan/internal/logger"
	"github.com/bryanwahyu/leafscan/internal/middleware"
)

// sessionStore is a repository that can also report its health.
type sessionStore interface {
	session.Repository
	middleware.HealthChecker
}

type imageStore interface {
	session.ImageStore
	middleware.HealthChecker
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init session repo
	sessions, db, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// init image store
	images, err := openImages(ctx, cfg)
	if err != nil {
		return err
	}

	// init classifier
	classifier, checker := openClassifier(cfg)

	hub := notify.NewHub(log)
	svc := &analysis.Service{
		Sessions:   sessions,
		Images:     images,
		Classifier: classifier,
		Notifier:   hub,
		Recorder:   middleware.AnalysisRecorder{},
		Clock:      application.SystemClock{},
		Logger:     log,
		Crops:      cfg.Crops,
		TTL:        cfg.Session.TTL,
		BusyTTL:    cfg.Session.BusyTTL,
	}
	go svc.RunSweeper(ctx, cfg.Session.SweepInterval)

	checkers := map[string]middleware.HealthChecker{
		"sessions": sessions,
		"images":   images,
	}
	if checker != nil {
		checkers["classifier"] = checker
	}

	// init router
	router, err := httpserver.NewRouter(svc, hub, httpserver.Options{
		Logger:       log,
		Checkers:     checkers,
		APIKeys:      middleware.KeysFromList(cfg.API.Keys),
		RateLimit:    cfg.API.RateLimit,
		Burst:        cfg.API.Burst,
		CORSOrigins:  cfg.API.CORSOrigins,
		CookieSecure: cfg.Session.CookieSecure,
		Async:        true,
	})
	if err != nil {
		return fmt.Errorf("router init: %w", err)
	}
	mux := chi.NewRouter()
	mux.Mount("/", router)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "crops", cfg.Crops, "classifier", cfg.Classifier.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// graceful shutdown
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	// analyses already sent upstream still record their outcome
	router.Wait()
	return nil
}

func openSessions(ctx context.Context, cfg *config.Config) (sessionStore, *sql.DB, error) {
	switch cfg.Session.Store {
	case config.StoreMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect error: %w", err)
		}
		repo := mysqlp.NewSessionRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("mysql migrate error: %w", err)
		}
		return repo, db, nil
	case config.StorePostgres:
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect error: %w", err)
		}
		repo := postgres.NewSessionRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres migrate error: %w", err)
		}
		return repo, db, nil
	default:
		return memory.NewSessionRepository(), nil, nil
	}
}

func openImages(ctx context.Context, cfg *config.Config) (imageStore, error) {
	if cfg.Images.Store != config.StoreMinio {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init error: %w", err)
	}
	return store, nil
}

func openClassifier(cfg *config.Config) (classification.Classifier, middleware.HealthChecker) {
	if cfg.Classifier.Provider == config.ProviderOpenAI {
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
	}
	client := inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.Path).
		WithHealthPath(cfg.Inference.HealthPath)
	return client, client
}
