//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reviewkit/engine/internal/app"
	"github.com/reviewkit/engine/internal/infra/notify"
	"github.com/reviewkit/engine/internal/infra/storage/pg"
	"github.com/reviewkit/engine/internal/infra/transport/rest/handlers"
	"github.com/reviewkit/engine/pkg/logger"
)

var (
	dbContainer *postgres.PostgresContainer
	dbURL       string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:16-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("Не удалось запустить контейнер PostgreSQL: %v", err)
	}
	dbContainer = container

	dbURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("Не удалось получить connection string: %v", err)
	}

	if err := applyMigrations(dbURL); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	code := m.Run()

	_ = dbContainer.Terminate(ctx)
	os.Exit(code)
}

func applyMigrations(databaseURL string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			return fmt.Errorf("go.mod not found")
		}
		projectRoot = parent
	}

	migrationsPath := filepath.Join(projectRoot, "database", "migrations")

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// setupTestDB возвращает чистую БД для очередного теста.
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err, "Не удалось подключиться к тестовой БД")

	_, err = db.Exec(`
		DO $$ DECLARE
		    r RECORD;
		BEGIN
		    SET session_replication_role = replica;

		    FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
		        EXECUTE 'TRUNCATE TABLE ' || quote_ident(r.tablename) || ' RESTART IDENTITY CASCADE';
		    END LOOP;

		    SET session_replication_role = origin;
		END $$;
	`)
	require.NoError(t, err, "Не удалось очистить таблицы")

	t.Cleanup(func() { db.Close() })
	return db
}

// newTestServer поднимает HTTP-поверхность движка поверх postgres-хранилища.
func newTestServer(t *testing.T, db *sql.DB) *httptest.Server {
	t.Helper()

	nop := logger.NewNop()
	storage := pg.NewPullRequestStorage(db, pg.NewTxManager(db, nop), nop)
	engine := app.NewEngine(storage, notify.NewRecorder(), nop)

	srv := httptest.NewServer(handlers.NewRouter(handlers.NewHandlers(engine, nop)))
	t.Cleanup(srv.Close)
	return srv
}
