package core

import (
	"time"
)

// ExtractedFields holds the header and body values read from one message
type ExtractedFields struct {
	Sender    *string
	Recipient string
	Subject   string
	Date      *string
	// Body is nil when the message carries no text/plain part
	Body *string
}

// Verdict represents the classification returned by the completion service
type Verdict struct {
	IsSuspicious bool
	Explanation  string
}

// AnalysisRecord is the audit entry written after every successful analysis
type AnalysisRecord struct {
	ID           int64
	Sender       string
	Subject      string
	Body         string
	IsSuspicious bool
	CreatedAt    time.Time
}

// AnalysisResult combines the extracted fields with the verdict
type AnalysisResult struct {
	Fields   *ExtractedFields
	Verdict  *Verdict
	RecordID int64
	Cached   bool
}

// CachedVerdict is a verdict stored under a prompt hash
type CachedVerdict struct {
	Key          string
	IsSuspicious bool
	Explanation  string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// StringValue dereferences an optional field, returning "" when absent
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
