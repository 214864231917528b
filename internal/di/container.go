package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/adapters/store"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/eml"
	"github.com/mikey/phishing-detector/internal/factory"
	"github.com/mikey/phishing-detector/internal/logging"
	"github.com/mikey/phishing-detector/internal/ports"
	"github.com/mikey/phishing-detector/internal/utils"
)

// BuildContainer creates and configures the dependency injection container for the server
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.NewFromFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register intakes
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IntakeFactory) []ports.Intake {
		return f.CreateIntakes()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideAnalysis registers everything between the configuration and the analysis service
func provideAnalysis(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register completion client and gateway
	if err := container.Provide(func(f *factory.LLMFactory) (core.CompletionClient, error) {
		return f.CreateCompletionClient()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.LLMFactory, client core.CompletionClient, tp *utils.TextProcessor) *core.ClassificationGateway {
		return f.CreateGateway(client, tp)
	}); err != nil {
		return err
	}

	// Register extractor
	if err := container.Provide(func(logger *zap.Logger) core.MessageExtractor {
		return eml.NewExtractor(logger)
	}); err != nil {
		return err
	}

	// Register cache and history store
	if err := container.Provide(func(f *factory.CacheFactory) (factory.StoppableCache, error) {
		return f.CreateVerdictCache()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (store.Repository, error) {
		return f.CreateRepository()
	}); err != nil {
		return err
	}

	// Register analysis service
	if err := container.Provide(func(
		extractor core.MessageExtractor,
		gateway *core.ClassificationGateway,
		cache factory.StoppableCache,
		repo store.Repository,
		logger *zap.Logger,
		f *factory.CacheFactory,
	) *core.AnalysisService {
		var verdictCache core.VerdictCache
		if cache != nil {
			verdictCache = cache
		}
		return core.NewAnalysisService(extractor, gateway, verdictCache, repo, logger, f.ServiceConfig())
	}); err != nil {
		return err
	}
	if err := container.Provide(func(s *core.AnalysisService) ports.Analyzer {
		return s
	}); err != nil {
		return err
	}

	return nil
}
