// Package postgres persists the registry snapshot as a single JSONB row.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"workerhub/internal/workers/models"
	"workerhub/internal/workers/store"
	"workerhub/pkg/platform/sentinel"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "workerhub_schema_migrations"

const (
	selectSnapshot = `SELECT body FROM registry_snapshot WHERE id = 1`

	upsertSnapshot = `INSERT INTO registry_snapshot (id, body, saved_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, saved_at = EXCLUDED.saved_at`
)

// PostgresStore keeps the snapshot in one row. The upsert is a single
// statement, so a reader sees either the old or the new document.
type PostgresStore struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed snapshot store.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies pending schema migrations. It runs on a dedicated
// connection so closing the migrator leaves the pool open.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing row is reported as sentinel.ErrNotFound.
func (s *PostgresStore) Load(ctx context.Context) ([]models.Worker, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, selectSnapshot).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot row: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return store.Decode(body)
}

// Write replaces the snapshot row.
func (s *PostgresStore) Write(ctx context.Context, workers []models.Worker) error {
	data, err := store.Encode(workers)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertSnapshot, data); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
