package factory

import (
	"fmt"

	"github.com/mikey/phishing-detector/internal/adapters/store"
	"github.com/mikey/phishing-detector/internal/config"
	"go.uber.org/zap"
)

// StoreFactory creates analysis history repositories
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRepository creates the repository selected by store.type
func (f *StoreFactory) CreateRepository() (store.Repository, error) {
	storeCfg := f.cfg.GetStore()
	logger := f.logger.With(zap.String("store", storeCfg.Type))

	switch storeCfg.Type {
	case "", "none":
		return store.NewDiscardRepository(), nil
	case "memory":
		return store.NewMemoryRepository(), nil
	case "sqlite":
		if err := ensureDir(storeCfg.SQLitePath); err != nil {
			return nil, err
		}
		return store.NewSQLiteRepository(storeCfg.SQLitePath, logger)
	case "mysql":
		return store.NewMySQLRepository(storeCfg.MySQLDSN, logger)
	case "postgres":
		return store.NewPostgresRepository(storeCfg.PostgresDSN, storeCfg.Debug, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}
