package factory

import (
	"fmt"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates completion clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCompletionClient creates the client for the configured provider
func (f *LLMFactory) CreateCompletionClient() (core.CompletionClient, error) {
	llmConfig := f.cfg.GetLLM()
	logger := f.logger.With(zap.String("provider", llmConfig.Provider))

	switch llmConfig.Provider {
	case "mistral":
		return NewMistralFactory(f.cfg, logger).CreateCompletionClient()
	case "openai":
		return NewOpenAIFactory(f.cfg, logger).CreateCompletionClient()
	case "gemini":
		return NewGeminiFactory(f.cfg, logger).CreateCompletionClient()
	case "bedrock":
		return NewBedrockFactory(f.cfg, logger).CreateCompletionClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

// CreateGateway wraps a completion client with the configured limits
func (f *LLMFactory) CreateGateway(client core.CompletionClient, textProcessor *utils.TextProcessor) *core.ClassificationGateway {
	llmConfig := f.cfg.GetLLM()
	return core.NewClassificationGateway(
		client,
		f.logger,
		textProcessor,
		core.GatewayConfig{
			Timeout:     llmConfig.Timeout,
			MaxBodySize: llmConfig.MaxBodySize,
		},
	)
}
