package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/taskapi/internal/adapter/driven/memory"
	"github.com/ericfisherdev/taskapi/internal/adapter/driven/password"
	sqliteadapter "github.com/ericfisherdev/taskapi/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/taskapi/internal/adapter/driven/token"
	httphandler "github.com/ericfisherdev/taskapi/internal/adapter/driving/http"
	"github.com/ericfisherdev/taskapi/internal/application"
	"github.com/ericfisherdev/taskapi/internal/config"
	"github.com/ericfisherdev/taskapi/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(stdout)
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"env", cfg.Env,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"auth_transport", cfg.AuthTransport,
		"cors_origins", cfg.CORSOrigins,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	logger.Info("migrations complete")

	// 5. Optionally tee logs into the logs table. The writer goroutine stops
	// before the database is closed.
	var logWriter sync.WaitGroup
	if cfg.LogPersist {
		persist := logging.NewPersistHandler(stdout, sqliteadapter.NewLogRepo(db), cfg.LogPersistLevel, logging.DefaultBufferSize)
		logger = slog.New(persist)
		slog.SetDefault(logger)

		persistCtx, cancelPersist := context.WithCancel(context.Background())
		logWriter.Add(1)
		go func() {
			defer logWriter.Done()
			persist.Run(persistCtx)
		}()
		defer func() {
			cancelPersist()
			logWriter.Wait()
		}()
		logger.Info("log persistence enabled", "level", cfg.LogPersistLevel.String())
	}

	// 6. Wire adapters.
	userStore := sqliteadapter.NewUserRepo(db)
	taskStore := sqliteadapter.NewTaskRepo(db)
	hasher := password.NewHasher(cfg.BcryptCost)
	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn)

	idempotencyStore := memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	defer idempotencyStore.Close()

	// 7. Create services.
	authSvc, err := application.NewAuthService(userStore, hasher, tokens, logger)
	if err != nil {
		return err
	}
	taskSvc := application.NewTaskService(taskStore, logger)
	healthSvc := application.NewHealthService(db, logger)

	// 8. Create HTTP handler and apply middleware.
	apiHandler := httphandler.NewHandler(authSvc, taskSvc, healthSvc, tokens, idempotencyStore, httphandler.Config{
		AuthTransport:  httphandler.AuthTransport(cfg.AuthTransport),
		SecureCookies:  cfg.IsProduction(),
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("taskapi started", "listen_addr", cfg.ListenAddr, "env", cfg.Env)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		logger.Error("http server error", "error", err)
		return err
	}

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
