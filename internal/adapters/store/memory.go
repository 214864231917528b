package store

import (
	"context"
	"sync"

	"github.com/mikey/phishing-detector/internal/core"
)

// MemoryRepository keeps records for the lifetime of the process
type MemoryRepository struct {
	mu      sync.RWMutex
	records []core.AnalysisRecord
	nextID  int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Save appends the record and assigns the next ID
func (r *MemoryRepository) Save(_ context.Context, record *core.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.ID = r.nextID
	r.nextID++
	r.records = append(r.records, *record)
	return nil
}

// List returns up to limit records, newest first; limit <= 0 returns all
func (r *MemoryRepository) List(_ context.Context, limit int) ([]core.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.AnalysisRecord, 0, n)
	for i := len(r.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
