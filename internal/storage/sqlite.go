package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Juicern/local-asr/internal/config"
)

func NewSQLite(cfg config.DatabaseConfig) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}

	// One writer at a time keeps SQLITE_BUSY away under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 10000;"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS transcription_logs (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    blake3_hash TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    model TEXT NOT NULL,
    language TEXT NOT NULL DEFAULT '',
    transcript TEXT NOT NULL DEFAULT '',
    segment_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transcription_logs_created_at
    ON transcription_logs (created_at);

CREATE INDEX IF NOT EXISTS idx_transcription_logs_blake3_hash
    ON transcription_logs (blake3_hash);
`
