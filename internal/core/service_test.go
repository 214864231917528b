package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/phishing-detector/internal/adapters/cache"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/eml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, record *core.AnalysisRecord) error {
	args := m.Called(ctx, record)
	if args.Error(0) == nil {
		record.ID = 42
	}
	return args.Error(0)
}

func (m *mockRepository) List(ctx context.Context, limit int) ([]core.AnalysisRecord, error) {
	args := m.Called(ctx, limit)
	records, _ := args.Get(0).([]core.AnalysisRecord)
	return records, args.Error(1)
}

const rawMessage = "From: alerts@bank-examp1e.com\r\n" +
	"To: customer@example.com\r\n" +
	"Subject: Confirm your details\r\n" +
	"\r\n" +
	"Click here to keep your account open.\r\n"

func newService(client core.CompletionClient, verdictCache core.VerdictCache, repo core.AnalysisRepository, cfg core.ServiceConfig) *core.AnalysisService {
	logger := zap.NewNop()
	return core.NewAnalysisService(eml.NewExtractor(logger), newGateway(client, core.GatewayConfig{}), verdictCache, repo, logger, cfg)
}

func TestAnalyzeRecordsHistory(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.MatchedBy(func(r *core.AnalysisRecord) bool {
		return r.Sender == "alerts@bank-examp1e.com" &&
			r.Subject == "Confirm your details" &&
			r.Body == "Click here to keep your account open.\r\n" &&
			r.IsSuspicious &&
			!r.CreatedAt.IsZero()
	})).Return(nil).Once()

	client := &fakeClient{reply: `{"spam": true, "details": "credential phishing"}`}
	s := newService(client, nil, repo, core.ServiceConfig{})

	result, err := s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.RecordID)
	assert.True(t, result.Verdict.IsSuspicious)
	assert.Equal(t, "credential phishing", result.Verdict.Explanation)
	assert.False(t, result.Cached)
	repo.AssertExpectations(t)
}

func TestAnalyzeSurvivesSaveFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	s := newService(&fakeClient{reply: `{"spam": false, "details": "ok"}`}, nil, repo, core.ServiceConfig{})

	result, err := s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.Zero(t, result.RecordID)
	assert.False(t, result.Verdict.IsSuspicious)
	repo.AssertExpectations(t)
}

func TestAnalyzeHistoryDisabledIsQuiet(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(core.ErrHistoryDisabled).Once()

	obs, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(obs)
	client := &fakeClient{reply: `{"spam": false, "details": "ok"}`}
	s := core.NewAnalysisService(eml.NewExtractor(logger), newGateway(client, core.GatewayConfig{}), nil, repo, logger, core.ServiceConfig{})

	result, err := s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.Zero(t, result.RecordID)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	repo.AssertExpectations(t)

	repo = &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	s = core.NewAnalysisService(eml.NewExtractor(logger), newGateway(client, core.GatewayConfig{}), nil, repo, logger, core.ServiceConfig{})

	_, err = s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Failed to save analysis record").Len())
}

func TestAnalyzeFailuresSkipHistory(t *testing.T) {
	repo := &mockRepository{}
	client := &fakeClient{reply: "nope"}
	s := newService(client, nil, repo, core.ServiceConfig{})

	_, err := s.Analyze(context.Background(), []byte(rawMessage))
	var gatewayErr *core.GatewayError
	assert.ErrorAs(t, err, &gatewayErr)

	_, err = s.Analyze(context.Background(), []byte("Subject: x\r\n\r\nbody\r\n"))
	var missing *core.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "To", missing.Field)

	assert.Len(t, client.prompts, 1)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAnalyzeUsesCache(t *testing.T) {
	verdictCache := cache.NewMemoryCache(zap.NewNop(), 0)
	defer verdictCache.Stop()

	client := &fakeClient{reply: `{"spam": true, "details": "credential phishing"}`}
	s := newService(client, verdictCache, nil, core.ServiceConfig{CacheEnabled: true, CacheTTL: time.Hour})

	first, err := s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := s.Analyze(context.Background(), []byte(rawMessage))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Len(t, client.prompts, 1)
}

func TestAnalyzeCacheDisabledCallsEveryTime(t *testing.T) {
	verdictCache := cache.NewMemoryCache(zap.NewNop(), 0)
	defer verdictCache.Stop()

	client := &fakeClient{reply: `{"spam": false, "details": "ok"}`}
	s := newService(client, verdictCache, nil, core.ServiceConfig{CacheEnabled: false})

	for i := 0; i < 2; i++ {
		_, err := s.Analyze(context.Background(), []byte(rawMessage))
		require.NoError(t, err)
	}
	assert.Len(t, client.prompts, 2)
	assert.Zero(t, verdictCache.Len())
}

func TestHistory(t *testing.T) {
	s := newService(&fakeClient{}, nil, nil, core.ServiceConfig{})
	_, err := s.History(context.Background(), 10)
	assert.ErrorIs(t, err, core.ErrHistoryDisabled)

	repo := &mockRepository{}
	repo.On("List", mock.Anything, 5).Return([]core.AnalysisRecord{{ID: 1}}, nil).Once()
	s = newService(&fakeClient{}, nil, repo, core.ServiceConfig{})

	records, err := s.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	repo.AssertExpectations(t)
}
