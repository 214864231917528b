package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phishing-detector/internal/adapters/cache"
	"github.com/mikey/phishing-detector/internal/config"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// StoppableCache is a verdict cache with a background cleanup task
type StoppableCache interface {
	core.VerdictCache
	Stop()
}

// CacheFactory creates verdict caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateVerdictCache creates the configured cache, or nil when caching is disabled
func (f *CacheFactory) CreateVerdictCache() (StoppableCache, error) {
	cacheCfg := f.cfg.GetCache()
	if !cacheCfg.Enabled {
		return nil, nil
	}
	logger := f.logger.With(zap.String("cache", cacheCfg.Type))

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(logger, cacheCfg.CleanupFrequency), nil
	case "sqlite":
		if err := ensureDir(cacheCfg.SQLitePath); err != nil {
			return nil, err
		}
		return cache.NewSQLiteCache(cacheCfg.SQLitePath, logger, cacheCfg.CleanupFrequency)
	case "mysql":
		return cache.NewMySQLCache(cacheCfg.MySQLDSN, logger, cacheCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// ServiceConfig returns the cache settings the analysis service needs
func (f *CacheFactory) ServiceConfig() core.ServiceConfig {
	cacheCfg := f.cfg.GetCache()
	return core.ServiceConfig{
		CacheEnabled: cacheCfg.Enabled,
		CacheTTL:     cacheCfg.TTL,
	}
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
