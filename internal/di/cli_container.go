package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/logging"
)

// CLIFlags contains the command line overrides of the CLI application
type CLIFlags struct {
	Provider   string
	Model      string
	APIKey     string
	AgentID    string
	BaseURL    string
	ConfigFile string
	Verbose    bool
	JSONLog    bool
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := loadCLIConfig(flags)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Debug("Loaded configuration from file", zap.String("file", used))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	return container, nil
}

func loadCLIConfig(flags *CLIFlags) (*config.Config, error) {
	cfg, err := config.NewFromFile(flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	// one-shot runs keep no history and no cache
	cfg.Set("store.type", "none")
	cfg.Set("cache.enabled", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides configuration values with the flags that were set
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	provider := cfg.GetLLM().Provider

	if flags.Model != "" {
		switch provider {
		case "openai":
			cfg.Set("openai.model_name", flags.Model)
		case "gemini":
			cfg.Set("gemini.model_name", flags.Model)
		case "bedrock":
			cfg.Set("bedrock.model_id", flags.Model)
		}
	}
	if flags.APIKey != "" {
		switch provider {
		case "mistral", "openai", "gemini":
			cfg.Set(provider+".api_key", flags.APIKey)
		}
	}
	if flags.BaseURL != "" {
		switch provider {
		case "mistral", "openai":
			cfg.Set(provider+".base_url", flags.BaseURL)
		}
	}
	if flags.AgentID != "" {
		cfg.Set("mistral.agent_id", flags.AgentID)
	}
}
