// Package store keeps the audit trail of analyses.
package store

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// Repository is an AnalysisRepository that owns a connection
type Repository interface {
	core.AnalysisRepository
	Close() error
}

// DiscardRepository drops every record; it backs the "none" store type
type DiscardRepository struct{}

// NewDiscardRepository creates a repository that keeps nothing
func NewDiscardRepository() *DiscardRepository {
	return &DiscardRepository{}
}

// Save drops the record and reports that history is disabled
func (DiscardRepository) Save(_ context.Context, _ *core.AnalysisRecord) error {
	return core.ErrHistoryDisabled
}

// List always reports that history is disabled
func (DiscardRepository) List(_ context.Context, _ int) ([]core.AnalysisRecord, error) {
	return nil, core.ErrHistoryDisabled
}

func (DiscardRepository) Close() error {
	return nil
}
