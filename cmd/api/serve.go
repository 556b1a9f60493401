package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/bright/uploader/internal/config"
	"github.com/bright/uploader/internal/db"
	"github.com/bright/uploader/internal/metrics"
	appMiddleware "github.com/bright/uploader/internal/middleware"
	"github.com/bright/uploader/internal/signer"
	"github.com/bright/uploader/internal/storage"
	"github.com/bright/uploader/internal/upload"

	_ "github.com/bright/uploader/docs/swagger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// app holds the services the HTTP router is built from.
type app struct {
	cfg     *config.Config
	signer  *signer.Signer
	metrics *metrics.Metrics
	uploads *upload.Handler
}

func serve(ctx context.Context, cfg *config.Config) error {
	var ledger upload.Ledger = upload.NopLedger{}
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		ledger = upload.NewRepository(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set, upload ledger disabled")
	}

	a, err := newApp(ctx, cfg, ledger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Str("disk", string(cfg.DefaultDisk)).
			Msg("server listening")
		log.Info().Msgf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// newApp wires repository → service → handler for the configured disk.
func newApp(ctx context.Context, cfg *config.Config, ledger upload.Ledger, reg prometheus.Registerer) (*app, error) {
	backend, err := upload.BackendFor(cfg.DefaultDisk)
	if err != nil {
		return nil, err
	}

	var (
		disk  storage.Disk
		cloud *upload.CloudAuthorizer
	)
	keys := upload.NewKeyGenerator(cfg.AllowedExtensions)

	switch backend {
	case upload.BackendCloud:
		minioDisk, err := storage.NewMinioDisk(ctx,
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageRegion,
			cfg.StorageUseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("object storage init failed: %w", err)
		}
		presigner, err := storage.NewS3Presigner(ctx, storage.S3Options{
			Endpoint:  cfg.StorageURL(),
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			PathStyle: cfg.StoragePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("presigner init failed: %w", err)
		}
		disk = minioDisk
		cloud = upload.NewCloudAuthorizer(keys, presigner, cfg.StorageBucket, cfg.WorkingPrefix, cfg.DefaultVisibility, cfg.SignedURLTTL)
	default:
		localDisk, err := storage.NewLocalDisk(cfg.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("local storage init failed: %w", err)
		}
		disk = localDisk
	}

	m := metrics.New(reg)
	s := signer.New(cfg.SigningSecret)
	local := upload.NewLocalAuthorizer(keys, s, cfg.AppURL, cfg.SignedURLTTL)

	handler := upload.NewHandler(
		upload.NewRouter(backend, local, cloud, ledger, m),
		upload.NewReceiver(disk, keys, cfg.WorkingPrefix, ledger, m),
		upload.NewReverter(disk, cfg.WorkingPrefix, ledger, m),
		cfg.MaxUploadBytes,
	)

	return &app{cfg: cfg, signer: s, metrics: m, uploads: handler}, nil
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if a.cfg.APITokenSecret != "" {
			r.Use(appMiddleware.RequireAuth(a.cfg.APITokenSecret))
		}
		r.Route("/uploads", func(r chi.Router) {
			r.Post("/signed", a.uploads.Signed)
			r.Post("/revert", a.uploads.Revert)
			r.Delete("/revert", a.uploads.Revert)
		})
	})

	// Signed local uploads; the signature is the only credential.
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RequireSignedRoute(a.signer, a.metrics))
		r.Post(upload.FilesRoute+"{file}", a.uploads.Upload)
		r.Put(upload.FilesRoute+"{file}", a.uploads.Upload)
		r.Post("/{scope}"+upload.FilesRoute+"{file}", a.uploads.Upload)
		r.Put("/{scope}"+upload.FilesRoute+"{file}", a.uploads.Upload)
	})

	return r
}
