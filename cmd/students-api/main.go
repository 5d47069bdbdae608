// main is the entry point of the Students API application.
//
// STARTUP SEQUENCE:
//  1. Load configuration (env vars, optional .env and YAML file)
//  2. Initialise the logger
//  3. Start the connection manager (bounded: wait for the database or exit;
//     unbounded: connect in the background)
//  4. Register all HTTP routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block the main goroutine until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then close the
//     database connection
//
// RUNNING THE SERVER:
//
//	MONGODB_URL=mongodb://localhost:27017/school go run ./cmd/students-api
//
// or with a config file:
//
//	go run ./cmd/students-api --config=config/local.yaml
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/students-api/internal/config"
	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/http/handlers/system"
	"github.com/aanand-mishra/students-api/internal/http/router"
	"github.com/aanand-mishra/students-api/internal/logger"
	"github.com/aanand-mishra/students-api/internal/storage/mongo"
	"github.com/aanand-mishra/students-api/internal/storage/sqlite"
)

const version = "1.0.0"

func main() {
	started := time.Now()

	// ── 1. Load Config ────────────────────────────────────────────────────
	// If MustLoad returns, the config is guaranteed valid.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Handlers log through the slog package functions, so this logger also
	// becomes the default.
	log, logFile := logger.New(cfg.Env, cfg.Log)
	defer logFile.Close()
	slog.SetDefault(log)

	log.Info("starting students-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
		slog.String("address", cfg.ListenAddr()),
		slog.String("route_style", cfg.RouteStyle),
		slog.String("base_path", cfg.BasePath),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("retry_strategy", cfg.Storage.Retry.Strategy),
	)

	if cfg.Storage.Driver == "mongo" {
		if cfg.Storage.ConnectionString == "" {
			log.Error("no MongoDB connection string set (MONGODB_URL, MONGODB_URI, MONGO_URL or DATABASE_URL)")
		} else {
			log.Info("mongodb configured",
				slog.String("connection_string", config.Redact(cfg.Storage.ConnectionString)))
		}
	}

	// ── 3. Start the Connection Manager ───────────────────────────────────
	// The manager is the storage.Storage handed to the handlers. While it is
	// not connected every student route answers 503.
	manager := connection.New(dialer(cfg), connection.Options{
		Strategy:              connection.Strategy(cfg.Storage.Retry.Strategy),
		Attempts:              cfg.Storage.Retry.Attempts,
		RetryDelay:            cfg.Storage.Retry.Delay,
		ConnectTimeout:        cfg.Storage.ConnectTimeout,
		HeartbeatInterval:     cfg.Storage.Retry.Heartbeat,
		ReconnectDelay:        cfg.Storage.Retry.ReconnectDelay,
		ReconnectOnDisconnect: cfg.Storage.Retry.ReconnectMode == config.ReconnectRedial,
	}, log)

	if err := manager.Start(context.Background()); err != nil {
		// Only the bounded strategy fails here.
		log.Error("failed to connect to the database",
			slog.String("error", err.Error()))
		os.Exit(1) // non-zero exit code signals failure to the OS / orchestrator
	}

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	handler := router.New(manager, router.Options{
		RouteStyle:      cfg.RouteStyle,
		BasePath:        cfg.BasePath,
		EmptyListStatus: cfg.EmptyListStatus,
		Redact:          cfg.IsProduction(),
		RequestTimeout:  cfg.RequestTimeout,
		Started:         started,
		Info: system.Info{
			Version:          version,
			Env:              cfg.Env,
			Addr:             cfg.ListenAddr(),
			Strategy:         cfg.Storage.Retry.Strategy,
			ConnectionString: cfg.Storage.ConnectionString,
		},
	}, log)

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	server := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: handler,

		// Production hardening: timeouts against slow clients. RequestTimeout,
		// validated shorter than WriteTimeout, bounds the storage calls.
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks, so it runs off the main goroutine and the
	// shutdown code below stays reachable.
	go func() {
		log.Info("server started", slog.String("address", cfg.ListenAddr()))

		// http.ErrServerClosed is the expected result of Shutdown.
		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	// Buffered so the signal is not missed if main is briefly busy.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// In-flight requests get ShutdownTimeout to finish; the database
	// connection is closed after the server has stopped using it.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		exitCode = 1
	}

	if err := manager.Stop(ctx); err != nil {
		log.Error("failed to close database connection",
			slog.String("error", err.Error()))
		exitCode = 1
	}

	if exitCode != 0 {
		logFile.Close()
		os.Exit(exitCode)
	}
	log.Info("server stopped gracefully")
}

// dialer returns the connection attempt for the configured driver.
func dialer(cfg *config.Config) connection.DialFunc {
	if cfg.Storage.Driver == "sqlite" {
		return func(ctx context.Context) (connection.Conn, error) {
			store, err := sqlite.Open(ctx, cfg.Storage.Path)
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	}

	mcfg := mongo.Config{
		URI:                    cfg.Storage.ConnectionString,
		Database:               cfg.Storage.Database,
		Collection:             cfg.Storage.Collection,
		ConnectTimeout:         cfg.Storage.ConnectTimeout,
		ServerSelectionTimeout: cfg.Storage.ServerSelectionTimeout,
		OperationTimeout:       cfg.Storage.SocketTimeout,
	}
	return func(ctx context.Context) (connection.Conn, error) {
		store, err := mongo.Open(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
