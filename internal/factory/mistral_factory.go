package factory

import (
	"errors"

	"github.com/mikey/phishing-detector/internal/adapters/mistral"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// MistralFactory creates Mistral agent clients
type MistralFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMistralFactory creates a new Mistral factory
func NewMistralFactory(cfg *config.Config, logger *zap.Logger) *MistralFactory {
	return &MistralFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCompletionClient creates a Mistral agents client
func (f *MistralFactory) CreateCompletionClient() (core.CompletionClient, error) {
	mistralCfg := f.cfg.GetMistral()
	if mistralCfg.APIKey == "" {
		return nil, errors.New("mistral API key is not configured")
	}
	if mistralCfg.AgentID == "" {
		return nil, errors.New("mistral agent id is not configured")
	}

	return mistral.NewMistralClient(nil, mistralCfg.BaseURL, mistralCfg.APIKey, mistralCfg.AgentID, f.logger), nil
}
