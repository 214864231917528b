package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type analysis struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Sender       string    `gorm:"type:text;not null"`
	Subject      string    `gorm:"type:text;not null"`
	Body         string    `gorm:"type:text;not null"`
	IsSuspicious bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (analysis) TableName() string {
	return "analyses"
}

// GormRepository stores records in PostgreSQL through GORM
type GormRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPostgresRepository connects to PostgreSQL and runs the migrations
func NewPostgresRepository(dsn string, debug bool, logger *zap.Logger) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logger, debug),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &GormRepository{db: db, logger: logger}
	if err := repo.migrate(); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

func (r *GormRepository) migrate() error {
	m := gormigrate.New(r.db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250319_create_analyses",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&analysis{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("analyses")
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	r.logger.Debug("Database migrations complete")
	return nil
}

// Save inserts the record and assigns its ID
func (r *GormRepository) Save(ctx context.Context, record *core.AnalysisRecord) error {
	row := analysis{
		Sender:       record.Sender,
		Subject:      record.Subject,
		Body:         record.Body,
		IsSuspicious: record.IsSuspicious,
		CreatedAt:    record.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	record.ID = row.ID
	return nil
}

// List returns up to limit records, newest first; limit <= 0 returns all
func (r *GormRepository) List(ctx context.Context, limit int) ([]core.AnalysisRecord, error) {
	q := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []analysis
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
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

// Close closes the underlying connection pool
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
