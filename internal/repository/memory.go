package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Juicern/local-asr/internal/domain"
)

// MemoryTranscriptionLogRepository keeps history in process memory. It backs
// DATABASE_DRIVER=memory and is lost on restart.
type MemoryTranscriptionLogRepository struct {
	mu    sync.RWMutex
	items map[string]domain.TranscriptionLog
}

func NewMemoryTranscriptionLogRepository() *MemoryTranscriptionLogRepository {
	return &MemoryTranscriptionLogRepository{
		items: make(map[string]domain.TranscriptionLog),
	}
}

func (r *MemoryTranscriptionLogRepository) Create(_ context.Context, entry domain.TranscriptionLog) (domain.TranscriptionLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.items[entry.ID] = entry
	r.mu.Unlock()

	return entry, nil
}

// GetByID returns sql.ErrNoRows for unknown ids so callers treat both
// repositories alike.
func (r *MemoryTranscriptionLogRepository) GetByID(_ context.Context, id string) (domain.TranscriptionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.items[id]
	if !ok {
		return domain.TranscriptionLog{}, sql.ErrNoRows
	}
	return entry, nil
}

func (r *MemoryTranscriptionLogRepository) List(_ context.Context, limit int) ([]domain.TranscriptionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	result := make([]domain.TranscriptionLog, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
