package factory

import (
	"context"
	"errors"

	"github.com/mikey/phishing-detector/internal/adapters/gemini"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// GeminiFactory creates Gemini clients
type GeminiFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger) *GeminiFactory {
	return &GeminiFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCompletionClient creates a Gemini client; the caller closes it
func (f *GeminiFactory) CreateCompletionClient() (core.CompletionClient, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, errors.New("Gemini API key is not configured")
	}

	return gemini.NewGeminiClient(
		context.Background(),
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		geminiCfg.Temperature,
		geminiCfg.TopP,
		f.cfg.GetLLM().Instructions,
		f.logger,
	)
}
