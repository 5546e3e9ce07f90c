package session

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded schema migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Querier abstracts the pgx methods PostgresStore needs. *pgxpool.Pool and
// pgx.Tx both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectFieldSQL = `SELECT value FROM chat_session_fields WHERE session_key = $1 AND field = $2`
	upsertFieldSQL = `INSERT INTO chat_session_fields (session_key, field, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_key, field) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteFieldSQL = `DELETE FROM chat_session_fields WHERE session_key = $1 AND field = $2`
	deleteKeySQL   = `DELETE FROM chat_session_fields WHERE session_key = $1`
	purgeSQL       = `DELETE FROM chat_session_fields WHERE updated_at < $1`
)

// PostgresStore keeps session fields as raw BYTEA values, so JSON carrying
// \u0000 escapes is stored unchanged. Concurrency is handled
// by the connection pool.
type PostgresStore struct {
	db  Querier
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore returns a store over db. A non-positive ttl disables
// Purge.
func NewPostgresStore(db Querier, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

// Get returns the stored value or nil.
func (s *PostgresStore) Get(ctx context.Context, key Key, field string) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRow(ctx, selectFieldSQL, key.String(), field).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", field, err)
	}
	return value, nil
}

// Set upserts the value.
func (s *PostgresStore) Set(ctx context.Context, key Key, field string, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, upsertFieldSQL, key.String(), field, value); err != nil {
		return fmt.Errorf("session: set %s: %w", field, err)
	}
	return nil
}

// Clear removes field, or every field of the key when field is empty.
func (s *PostgresStore) Clear(ctx context.Context, key Key, field string) error {
	if err := key.Validate(); err != nil {
		return err
	}

	var err error
	if field == "" {
		_, err = s.db.Exec(ctx, deleteKeySQL, key.String())
	} else {
		_, err = s.db.Exec(ctx, deleteFieldSQL, key.String(), field)
	}
	if err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Purge deletes rows not updated within the TTL.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, purgeSQL, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the embedded schema to databaseURL.
func RunMigrations(databaseURL string, logger *slog.Logger) error {
	d, err := iofs.New(MigrationsFS(), ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("session migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}
