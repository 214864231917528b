package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ServiceConfig holds the cache settings of the analysis service
type ServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AnalysisService is the core service tying extraction, classification and history together
type AnalysisService struct {
	extractor    MessageExtractor
	gateway      *ClassificationGateway
	cache        VerdictCache
	repo         AnalysisRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	extractor MessageExtractor,
	gateway *ClassificationGateway,
	cache VerdictCache,
	repo AnalysisRepository,
	logger *zap.Logger,
	cfg ServiceConfig,
) *AnalysisService {
	return &AnalysisService{
		extractor:    extractor,
		gateway:      gateway,
		cache:        cache,
		repo:         repo,
		logger:       logger,
		cacheEnabled: cfg.CacheEnabled && cache != nil,
		cacheTTL:     cfg.CacheTTL,
	}
}

// Analyze extracts the fields of a raw message and classifies them
func (s *AnalysisService) Analyze(ctx context.Context, raw []byte) (*AnalysisResult, error) {
	fields, err := s.extractor.Extract(raw)
	if err != nil {
		s.logger.Info("Rejected message", zap.Error(err), zap.Int("size", len(raw)))
		return nil, err
	}

	prompt := s.gateway.BuildPrompt(fields)
	result := &AnalysisResult{Fields: fields}

	var key string
	if s.cacheEnabled {
		key = PromptKey(prompt)
		if entry, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("Cache hit for prompt", zap.String("key", key))
			result.Verdict = &Verdict{IsSuspicious: entry.IsSuspicious, Explanation: entry.Explanation}
			result.Cached = true
		}
	}

	if result.Verdict == nil {
		verdict, err := s.gateway.ClassifyPrompt(ctx, prompt)
		if err != nil {
			return nil, err
		}
		result.Verdict = verdict

		if s.cacheEnabled {
			now := time.Now()
			entry := &CachedVerdict{
				Key:          key,
				IsSuspicious: verdict.IsSuspicious,
				Explanation:  verdict.Explanation,
				CreatedAt:    now,
				ExpiresAt:    now.Add(s.cacheTTL),
			}
			if err := s.cache.Set(ctx, entry); err != nil {
				s.logger.Error("Failed to update cache", zap.Error(err))
			}
		}
	}

	result.RecordID = s.record(ctx, fields, result.Verdict)

	s.logger.Info("Analyzed message",
		zap.String("sender", StringValue(fields.Sender)),
		zap.String("subject", fields.Subject),
		zap.Bool("is_suspicious", result.Verdict.IsSuspicious),
		zap.Bool("cached", result.Cached))

	return result, nil
}

// record writes the audit entry; failures are logged and never fail the analysis
func (s *AnalysisService) record(ctx context.Context, fields *ExtractedFields, verdict *Verdict) int64 {
	if s.repo == nil {
		return 0
	}

	rec := &AnalysisRecord{
		Sender:       StringValue(fields.Sender),
		Subject:      fields.Subject,
		Body:         StringValue(fields.Body),
		IsSuspicious: verdict.IsSuspicious,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		if !errors.Is(err, ErrHistoryDisabled) {
			s.logger.Error("Failed to save analysis record", zap.Error(err))
		}
		return 0
	}
	return rec.ID
}

// History returns the most recent analysis records
func (s *AnalysisService) History(ctx context.Context, limit int) ([]AnalysisRecord, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.List(ctx, limit)
}
