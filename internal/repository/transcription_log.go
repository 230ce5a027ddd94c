package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/Juicern/local-asr/internal/domain"
)

type TranscriptionLogRepository struct {
	db *sql.DB
}

func NewTranscriptionLogRepository(db *sql.DB) *TranscriptionLogRepository {
	return &TranscriptionLogRepository{db: db}
}

func (r *TranscriptionLogRepository) Create(ctx context.Context, entry domain.TranscriptionLog) (domain.TranscriptionLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transcription_logs (
			id, filename, blake3_hash, size_bytes, model, language, transcript,
			segment_count, status, error, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.ID, entry.Filename, entry.Blake3Hash, entry.SizeBytes, entry.Model, entry.Language, entry.Transcript,
		entry.SegmentCount, string(entry.Status), entry.Error, entry.DurationMs, entry.CreatedAt)
	return entry, err
}

func (r *TranscriptionLogRepository) GetByID(ctx context.Context, id string) (domain.TranscriptionLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, blake3_hash, size_bytes, model, language, transcript,
			segment_count, status, error, duration_ms, created_at
		FROM transcription_logs
		WHERE id = $1
	`, id)
	return scanLog(row)
}

func (r *TranscriptionLogRepository) List(ctx context.Context, limit int) ([]domain.TranscriptionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, blake3_hash, size_bytes, model, language, transcript,
			segment_count, status, error, duration_ms, created_at
		FROM transcription_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.TranscriptionLog, 0)
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(s scanner) (domain.TranscriptionLog, error) {
	var entry domain.TranscriptionLog
	var status string
	var errText sql.NullString
	err := s.Scan(&entry.ID, &entry.Filename, &entry.Blake3Hash, &entry.SizeBytes, &entry.Model, &entry.Language,
		&entry.Transcript, &entry.SegmentCount, &status, &errText, &entry.DurationMs, &entry.CreatedAt)
	if err != nil {
		return domain.TranscriptionLog{}, err
	}
	entry.Status = domain.TranscriptionStatus(status)
	if errText.Valid {
		value := errText.String
		entry.Error = &value
	}
	return entry, nil
}
