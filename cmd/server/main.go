package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/events/nop"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/handler"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/interfaces"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/ledger"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/middleware"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/rewards-points-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/rewards-points-ledger/pkg/cache"
	"github.com/sheikh-saqib/rewards-points-ledger/pkg/config"
	"github.com/sheikh-saqib/rewards-points-ledger/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New("points-ledger", cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open ledger store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	publisher, closePublisher := openPublisher(cfg, log)
	defer closePublisher()

	ledgerService := ledger.NewService(store,
		ledger.WithPublisher(publisher),
		ledger.WithLogger(log),
	)

	for _, user := range cfg.Ledger.SeedUsers {
		err := ledgerService.RegisterUser(ctx, user)
		if err != nil && !errors.Is(err, ledger.ErrUserExists) {
			log.Error("failed to seed user", "user_id", user, "error", err)
			os.Exit(1)
		}
	}

	responseCache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()
	idem := middleware.NewIdempotencyMiddleware(responseCache, cfg.Redis.IdempotencyTTL, log)

	router := handler.NewRouter(handler.NewPointsHandler(ledgerService, log), log, idem)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting server", "address", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (interfaces.LedgerStore, func(), error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		return memory.NewMemoryLedgerStore(), func() {}, nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Storage.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Storage.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Storage.ConnMaxLifetime)

	store := postgres.NewPostgresLedgerStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("database connected")
	return store, func() { db.Close() }, nil
}

func openPublisher(cfg *config.Config, log *slog.Logger) (interfaces.EventPublisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nop.Publisher{}, func() {}
	}

	p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	log.Info("publishing ledger events", "brokers", cfg.Kafka.Brokers)
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("kafka writer close failed", "error", err)
		}
	}
}

// openCache falls back to an in-process cache when Redis is not configured
// or unreachable.
func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.Cache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(), func() {}
	}

	rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, using in-memory idempotency cache", "addr", cfg.Redis.Addr, "error", err)
		return cache.NewMemoryCache(), func() {}
	}
	log.Info("redis connected", "addr", cfg.Redis.Addr)
	return rc, func() { _ = rc.Close() }
}
