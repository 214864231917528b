package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/phishing-detector/internal/core"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

type analysisRow struct {
	ID           int64     `db:"id"`
	Sender       string    `db:"sender"`
	Subject      string    `db:"subject"`
	Body         string    `db:"body"`
	IsSuspicious bool      `db:"is_suspicious"`
	CreatedAt    time.Time `db:"created_at"`
}

// SQLRepository stores records through sqlx on SQLite or MySQL
type SQLRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLiteRepository opens the database file and applies pending migrations
func NewSQLiteRepository(path string, logger *zap.Logger) (*SQLRepository, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not set journal mode: %w", err)
	}

	return newSQLRepository(db, "sqlite3", "migrations/sqlite", logger)
}

// NewMySQLRepository connects to MySQL and applies pending migrations
func NewMySQLRepository(dsn string, logger *zap.Logger) (*SQLRepository, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sqlx.Connect("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("could not connect to MySQL: %w", err)
	}

	return newSQLRepository(db, "mysql", "migrations/mysql", logger)
}

func newSQLRepository(db *sqlx.DB, dialect, root string, logger *zap.Logger) (*SQLRepository, error) {
	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       root,
	}
	applied, err := migrate.Exec(db.DB, dialect, source, migrate.Up)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate to newest version: %w", err)
	}
	logger.Debug("Executed migrations", zap.String("dialect", dialect), zap.Int("applied", applied))

	return &SQLRepository{db: db, logger: logger}, nil
}

// Save inserts the record and assigns its ID
func (r *SQLRepository) Save(ctx context.Context, record *core.AnalysisRecord) error {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analyses (sender, subject, body, is_suspicious, created_at)
		VALUES (:sender, :subject, :body, :is_suspicious, :created_at)
	`, analysisRow{
		Sender:       record.Sender,
		Subject:      record.Subject,
		Body:         record.Body,
		IsSuspicious: record.IsSuspicious,
		CreatedAt:    record.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("could not insert analysis: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("could not read analysis id: %w", err)
	}
	record.ID = id
	return nil
}

// List returns up to limit records, newest first; limit <= 0 returns all
func (r *SQLRepository) List(ctx context.Context, limit int) ([]core.AnalysisRecord, error) {
	query := `SELECT id, sender, subject, body, is_suspicious, created_at FROM analyses ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []analysisRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("could not list analyses: %w", err)
	}

	records := make([]core.AnalysisRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, core.AnalysisRecord{
			ID:           row.ID,
			Sender:       row.Sender,
			Subject:      row.Subject,
			Body:         row.Body,
			IsSuspicious: row.IsSuspicious,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return records, nil
}

// Close closes the database
func (r *SQLRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	return nil
}
