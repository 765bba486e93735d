package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"feedlog/internal/auth"
	"feedlog/internal/config"
	"feedlog/internal/db"
	"feedlog/internal/entry"
	"feedlog/internal/maintenance"
	"feedlog/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *zap.Logger
	Addr    string
	Close   func() error
}

// Build wires configuration, storage and HTTP routes. The pgx stdlib driver must be
// registered by the caller.
func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", zap.Error(err))
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations || cfg.RunMigrationsOnStartup {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		version, err := db.MigrationVersion(database)
		if err != nil {
			logger.Warn("migration_version_unknown", zap.Error(err))
		}
		logger.Info("migrations_applied", zap.Int64("version", version))
	}

	handler, service, err := newHandler(cfg, database, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	if err := service.BootstrapFromEnv(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Addr:    cfg.Addr(),
		Close: func() error {
			observability.FlushSentry()
			_ = logger.Sync()
			return database.Close()
		},
	}, nil
}

func newHandler(cfg config.Config, database *sql.DB, logger *zap.Logger) (http.Handler, *auth.Service, error) {
	sessions, err := auth.NewSessionManager(cfg.AuthSecret, auth.SessionOptions{
		TTL:           auth.DefaultSessionTTL,
		SecureCookies: cfg.IsProduction(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init sessions: %w", err)
	}

	limiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)
	authService := auth.NewService(auth.NewRepository(database), limiter)
	authHandler := auth.NewHandler(authService, sessions, cfg.ClientIPHeader)
	entryHandler := entry.NewHandler(entry.NewRepository(database))
	rateLimitHandler := maintenance.NewRateLimitHandler(limiter, logger, cfg.CronSecret)

	protected := func(h http.HandlerFunc) http.Handler {
		return auth.RequireSession(sessions, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/user", authHandler.User)
	mux.Handle("POST /api/auth/password", protected(authHandler.ChangePassword))
	mux.Handle("GET /api/entries", protected(entryHandler.ListEntries))
	mux.Handle("POST /api/entries", protected(entryHandler.CreateEntry))
	mux.Handle("POST /api/entries/bulk", protected(entryHandler.BulkCreateEntries))
	mux.Handle("PUT /api/entries", protected(entryHandler.UpdateEntryFromBody))
	mux.Handle("PUT /api/entries/{id}", protected(entryHandler.UpdateEntry))
	mux.Handle("DELETE /api/entries", protected(entryHandler.DeleteEntryByQuery))
	mux.Handle("DELETE /api/entries/{id}", protected(entryHandler.DeleteEntry))
	mux.HandleFunc("GET /internal/maintenance/rate-limit", rateLimitHandler.Stats)
	mux.HandleFunc("POST /internal/maintenance/rate-limit/reset", rateLimitHandler.Reset)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.SecurityHeadersMiddleware(mux)
	handler = observability.RequestLoggingMiddleware(logger, cfg.ClientIPHeader, handler)
	handler = observability.RecoverMiddleware(logger, handler)

	return handler, authService, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
