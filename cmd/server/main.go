package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liamcoop/shelflife/compliance"
	"github.com/liamcoop/shelflife/internal/config"
	"github.com/liamcoop/shelflife/internal/logger"
	"github.com/liamcoop/shelflife/internal/metrics"
	"github.com/liamcoop/shelflife/rulebook"
	"github.com/liamcoop/shelflife/shelflife"
	_ "github.com/lib/pq"
)

// stores bundles the persistence chosen by configuration
type stores struct {
	rulebooks rulebook.Store
	checks    compliance.CheckStore
	db        *sql.DB
	closers   []func() error
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return &stores{
			rulebooks: rulebook.NewPostgresStore(db),
			checks:    compliance.NewPostgresCheckStore(db),
			db:        db,
			closers:   []func() error{db.Close},
		}, nil

	case config.DriverSQLite:
		store, err := rulebook.OpenSQLiteStore(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		// checks are not persisted in sqlite; the defaults are reseeded on start
		return &stores{
			rulebooks: store,
			checks:    compliance.NewInMemoryCheckStore(),
			closers:   []func() error{store.Close},
		}, nil

	default:
		return &stores{
			rulebooks: rulebook.NewMemoryStore(),
			checks:    compliance.NewInMemoryCheckStore(),
		}, nil
	}
}

// ruleBookSource returns the configured artifact source, or nil when none is set
func ruleBookSource(ctx context.Context, cfg config.RuleBookConfig) (rulebook.Source, error) {
	switch {
	case cfg.File != "":
		return rulebook.FileSource{Path: cfg.File}, nil
	case cfg.S3Bucket != "":
		return rulebook.NewS3Source(ctx, rulebook.S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, nil
	}
}

// setup loads rule books and checks and returns a ready server
func setup(ctx context.Context, cfg *config.Config, st *stores) (*Server, error) {
	manager := rulebook.NewManager(st.rulebooks, shelflife.WithLocation(cfg.Location()))

	logger.Info("Loading rule book...", "store", cfg.Store.Driver)
	if err := manager.Load(ctx); err != nil {
		return nil, err
	}

	src, err := ruleBookSource(ctx, cfg.RuleBook)
	if err != nil {
		return nil, err
	}
	if src != nil {
		record, changed, err := manager.Sync(ctx, src, "imported at startup")
		if err != nil {
			return nil, fmt.Errorf("failed to import rule book from %s: %w", src, err)
		}
		if changed {
			metrics.ObserveRuleBookChange("publish", record.Version, nil)
		}
	}
	metrics.ActiveRuleBookVersion.Set(float64(manager.Current().Version))

	existing, err := st.checks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliance checks: %w", err)
	}
	if len(existing) == 0 {
		added, err := compliance.SeedDefaults(ctx, st.checks)
		if err != nil {
			return nil, err
		}
		logger.Info("Seeded default compliance checks", "count", added)
	}

	checks, err := compliance.NewEngine(ctx, st.checks)
	if err != nil {
		return nil, fmt.Errorf("failed to compile compliance checks: %w", err)
	}

	opts := ServerOptions{
		RequestTimeout: cfg.Server.RequestTimeoutDuration(),
		SlowRequest:    cfg.Server.SlowRequestDuration(),
	}
	return NewServer(manager, checks, st.db, cfg.Store.Driver, opts), nil
}

func main() {
	configPath := flag.String("config", os.Getenv("SHELFLIFE_CONFIG"), "Path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}
	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("Unknown log level, keeping default", "level", cfg.Log.Level, "using", logger.GetLevel().String())
	}

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open store", "driver", cfg.Store.Driver, "error", err)
	}
	defer st.Close()

	server, err := setup(ctx, cfg, st)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "addr", httpServer.Addr, "timezone", cfg.Location().String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	snap := logger.Snapshot()
	logger.Info("Server stopped", "errors", snap.Errors, "5xx", snap.HTTP5xx, "4xx", snap.HTTP4xx, "slow_requests", snap.SlowRequests)
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
}
