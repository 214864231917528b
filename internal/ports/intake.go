package ports

import (
	"context"

	"github.com/mikey/phishing-detector/internal/core"
)

// Analyzer is the service surface the intakes drive
type Analyzer interface {
	// Analyze extracts and classifies one raw message
	Analyze(ctx context.Context, raw []byte) (*core.AnalysisResult, error)

	// History returns the most recent analysis records
	History(ctx context.Context, limit int) ([]core.AnalysisRecord, error)
}

// Intake defines the interface for a listener that feeds messages to the analyzer
type Intake interface {
	// Start starts accepting messages; it returns once the listener is bound
	Start() error

	// Stop stops the listener
	Stop() error
}
