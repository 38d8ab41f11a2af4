// Package store persists tasks, snapshots and the proxy record through gorm.
package store

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the gorm-backed persistence layer. It is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend.
func Open(cfg config.DBConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Type)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed open %s database", cfg.Type)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	maxOpen := cfg.MaxOpenConns
	if cfg.Type == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	slog.Info("database opened", "type", cfg.Type)
	return &Store{db: db}, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tasks, task_details and proxy tables.
func (s *Store) Migrate() error {
	return errors.WithStack(s.db.AutoMigrate(&models.Task{}, &models.Snapshot{}, &models.ProxyConfig{}))
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(sqlDB.Close())
}
