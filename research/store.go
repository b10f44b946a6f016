package research

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lexlabs/lexcrew/config"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("research run not found")

// Run is a persisted research crew execution.
type Run struct {
	ID          string `gorm:"primaryKey;size:36"`
	Query       string `gorm:"not null"`
	Status      string `gorm:"size:16;index"`
	FinalOutput string
	Error       string
	TokensUsed  int
	DurationMS  int64
	CacheHit    bool
	Tasks       []TaskRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"index"`
}

// TaskRecord is one task outcome within a run.
type TaskRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"size:36;index;not null"`
	TaskID     string `gorm:"size:64"`
	AgentID    string `gorm:"size:64"`
	Output     string
	Error      string
	TokensUsed int
	DurationMS int64
	Position   int
}

// OpenDatabase connects per the configured driver and migrates the run
// tables.
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&Run{}, &TaskRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// Store persists research runs.
type Store struct {
	db *gorm.DB
}

// NewStore creates a run store over an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create saves a run and its task records.
func (s *Store) Create(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetByID loads a run with its task records.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// List returns the most recent runs, newest first, without task records.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
