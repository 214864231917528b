package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mikey/phishing-detector/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the VerdictCache interface
type MySQLCache struct {
	db     *sqlx.DB
	logger *zap.Logger
	task   *cleanupTask
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key CHAR(64) PRIMARY KEY,
			is_suspicious BOOLEAN NOT NULL,
			explanation TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_verdict_cache_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	cache := &MySQLCache{
		db:     db,
		logger: logger,
	}
	cache.task = startCleanupTask(cache, cleanupFreq, logger)

	return cache, nil
}

// Get retrieves a live verdict for a prompt hash
func (c *MySQLCache) Get(ctx context.Context, key string) (*core.CachedVerdict, error) {
	var row verdictRow
	err := c.db.GetContext(ctx, &row, `
		SELECT cache_key, is_suspicious, explanation, created_at, expires_at
		FROM verdict_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().Unix())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return row.toEntry(), nil
}

// Set stores a verdict
func (c *MySQLCache) Set(ctx context.Context, entry *core.CachedVerdict) error {
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO verdict_cache (cache_key, is_suspicious, explanation, created_at, expires_at)
		VALUES (:cache_key, :is_suspicious, :explanation, :created_at, :expires_at)
		ON DUPLICATE KEY UPDATE
			is_suspicious = VALUES(is_suspicious),
			explanation = VALUES(explanation),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)
	`, toRow(entry))
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM verdict_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *MySQLCache) Stop() {
	c.task.stop()
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
