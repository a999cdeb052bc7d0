package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewkit/engine/internal/app"
	"github.com/reviewkit/engine/internal/configs"
	"github.com/reviewkit/engine/internal/domain/repository"
	"github.com/reviewkit/engine/internal/domain/usecase"
	"github.com/reviewkit/engine/internal/infra/notify"
	"github.com/reviewkit/engine/internal/infra/storage/memory"
	"github.com/reviewkit/engine/internal/infra/storage/pg"
	"github.com/reviewkit/engine/internal/infra/storage/redisrepo"
	"github.com/reviewkit/engine/internal/infra/transport/rest/handlers"
	"github.com/reviewkit/engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := configs.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	repo, rdb, cleanup, err := buildStorage(cfg, log)
	if err != nil {
		log.Fatalw("storage initialization", "backend", cfg.Storage.Backend, "error", err)
	}
	defer cleanup()

	notifier := buildNotifier(cfg, rdb, log)

	engine := app.NewEngine(repo, notifier, log)
	h := handlers.NewHandlers(engine, log)
	router := handlers.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr(),
		Handler: router,
	}

	go func() {
		log.Infow("server starting", "addr", srv.Addr, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}

	log.Infow("server exited")
}

func buildStorage(cfg *configs.Config, log *zap.SugaredLogger) (repository.PullRequestRepository, redis.UniversalClient, func(), error) {
	switch cfg.Storage.Backend {
	case configs.StoragePostgres:
		db, err := sql.Open("postgres", cfg.Storage.PostgresURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := applyMigrations(db, cfg.Storage.MigrationsDir); err != nil {
			return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		txm := pg.NewTxManager(db, log)
		repo := pg.NewPullRequestStorage(db, txm, log)
		return repo, nil, func() { _ = db.Close() }, nil

	case configs.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Storage.RedisAddr,
			DB:   cfg.Storage.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		repo := redisrepo.NewStorage(rdb, cfg.Storage.RedisKeyPrefix)
		return repo, rdb, func() { _ = rdb.Close() }, nil

	default:
		return memory.NewStorage(), nil, func() {}, nil
	}
}

func buildNotifier(cfg *configs.Config, rdb redis.UniversalClient, log *zap.SugaredLogger) usecase.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if rdb != nil && cfg.Notify.RedisChannel != "" {
		notifiers = append(notifiers, notify.NewRedisNotifier(rdb, cfg.Notify.RedisChannel, log))
	}
	return notifiers
}

func applyMigrations(db *sql.DB, dir string) error {
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
