package core

import (
	"context"
)

// MessageExtractor turns raw message bytes into extracted fields
type MessageExtractor interface {
	Extract(raw []byte) (*ExtractedFields, error)
}

// CompletionClient defines the interface for interacting with completion services
type CompletionClient interface {
	// Complete submits a single user prompt and returns the raw reply content
	Complete(ctx context.Context, prompt string) (string, error)
}

// VerdictCache defines the interface for caching verdicts by prompt hash
type VerdictCache interface {
	// Get retrieves a cached verdict
	Get(ctx context.Context, key string) (*CachedVerdict, error)

	// Set stores a verdict
	Set(ctx context.Context, entry *CachedVerdict) error

	// Delete removes a cached verdict
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// AnalysisRepository stores the audit trail of analyses
type AnalysisRepository interface {
	// Save persists a record and assigns its ID
	Save(ctx context.Context, record *AnalysisRecord) error

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]AnalysisRecord, error)
}
