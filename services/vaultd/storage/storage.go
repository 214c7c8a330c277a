package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("vaultd storage path must be configured")

// Operation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Operation is one journalled API mutation.
type Operation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"size:32;index"`
	Vault     string    `gorm:"size:42;index"`
	Actor     string    `gorm:"size:42"`
	Amount    uint64
	Result    string `gorm:"size:512"`
	Outcome   string `gorm:"size:16;index"`
	Error     string `gorm:"size:512"`
	CreatedAt time.Time
}

// OracleSample is one polled vendor price and what the engine did with it.
type OracleSample struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Vault      string    `gorm:"size:42;index"`
	Source     string    `gorm:"size:64;index"`
	Vendor     string    `gorm:"size:32"`
	Price      uint64
	Confidence uint64
	ObservedAt time.Time
	Accepted   bool
	Rebalanced bool
	Error      string `gorm:"size:512"`
	CreatedAt  time.Time
}

// Storage is the vaultd journal.
type Storage struct {
	db *gorm.DB
}

// Open connects to Postgres for postgres:// URLs and to SQLite otherwise, and
// migrates the journal schema.
func Open(dsn string) (*Storage, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	var dialector gorm.Dialector
	if isPostgres(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Operation{}, &OracleSample{}); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases database resources.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordOperation appends op to the journal, assigning an id when missing.
func (s *Storage) RecordOperation(ctx context.Context, op *Operation) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// Operations returns the most recent journal entries, newest first. An empty
// vault returns entries for every vault.
func (s *Storage) Operations(ctx context.Context, vault string, limit int) ([]Operation, error) {
	if s == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if vault = strings.TrimSpace(vault); vault != "" {
		query = query.Where("vault = ?", vault)
	}
	var out []Operation
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	return out, nil
}

// RecordSample persists a polled oracle sample.
func (s *Storage) RecordSample(ctx context.Context, sample *OracleSample) error {
	if s == nil {
		return fmt.Errorf("storage not configured")
	}
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(sample).Error; err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// LatestSample returns the newest accepted sample for vault.
func (s *Storage) LatestSample(ctx context.Context, vault string) (OracleSample, error) {
	var out OracleSample
	if s == nil {
		return out, fmt.Errorf("storage not configured")
	}
	err := s.db.WithContext(ctx).
		Where("vault = ? AND accepted = ?", vault, true).
		Order("created_at DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, fmt.Errorf("sample not found")
	}
	if err != nil {
		return out, fmt.Errorf("query sample: %w", err)
	}
	return out, nil
}
