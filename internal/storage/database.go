package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Juicern/local-asr/internal/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the history database for cfg.Driver. The memory driver has no
// database and yields a nil *sql.DB.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return NewSQLite(cfg)
	case DriverPostgres:
		return NewDatabase(ctx, cfg)
	case DriverMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDatabase opens the postgres history database, creating it first when the
// server does not have it yet. Both URL and keyword/value DSNs are accepted.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	connCfg, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if err := ensureDatabaseExists(ctx, connCfg); err != nil {
		return nil, err
	}

	return stdlib.OpenDB(*connCfg), nil
}

func parseDSN(dsn string) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN: %w", err)
	}
	if connCfg.Database == "" {
		return nil, errors.New("DSN must include database name")
	}
	return connCfg, nil
}

// adminConfig points a copy of connCfg at the maintenance database.
func adminConfig(connCfg *pgx.ConnConfig) *pgx.ConnConfig {
	admin := connCfg.Copy()
	admin.Database = "postgres"
	return admin
}

func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("db is nil")
	}

	schema := sqliteSchemaSQL
	if driver == DriverPostgres {
		schema = postgresSchemaSQL
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS transcription_logs (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    blake3_hash TEXT NOT NULL,
    size_bytes BIGINT NOT NULL DEFAULT 0,
    model TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    transcript TEXT NOT NULL DEFAULT '',
    segment_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transcription_logs_created_at
    ON transcription_logs (created_at);

CREATE INDEX IF NOT EXISTS idx_transcription_logs_blake3_hash
    ON transcription_logs (blake3_hash);
`

func ensureDatabaseExists(ctx context.Context, connCfg *pgx.ConnConfig) error {
	adminDB := stdlib.OpenDB(*adminConfig(connCfg))
	defer adminDB.Close()

	_, err := adminDB.ExecContext(ctx, "CREATE DATABASE "+quoteIdentifier(connCfg.Database))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P04" { // duplicate_database
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating database %s: %w", connCfg.Database, err)
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
