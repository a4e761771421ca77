// Package store implements the persistent metadata store: users, the VFS
// file tree, and the activity log, backed by a single SQLite file. Every
// operation is serialized behind one process-wide mutex; handlers are short
// and correctness wins over throughput here.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marmos91/fileshare/pkg/auth"
)

// PrimaryAdminID is the seeded admin account. It can never be deleted and
// its admin flag can never be cleared.
const PrimaryAdminID int64 = 1

// Config contains metadata store configuration.
type Config struct {
	// Path is the SQLite database file. The parent directory is created
	// if missing.
	Path string
}

// Store is the SQLite-backed metadata store.
type Store struct {
	// mu serializes every metadata operation, reads included.
	mu sync.Mutex
	db *gorm.DB
}

// New opens (or creates) the database at cfg.Path, migrates the schema, and
// seeds the primary admin on first start.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent readers with a single writer, busy_timeout to
	// wait out transient locks instead of failing.
	dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	s := &Store{db: db}

	if err := s.seedPrimaryAdmin(); err != nil {
		return nil, fmt.Errorf("failed to seed primary admin: %w", err)
	}

	return s, nil
}

// seedPrimaryAdmin creates the admin/admin account with id=1 on first
// start. Subsequent starts leave the row alone.
func (s *Store) seedPrimaryAdmin() error {
	var count int64
	if err := s.db.Model(&User{}).Where("id = ?", PrimaryAdminID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin := &User{
		ID:           PrimaryAdminID,
		Username:     "admin",
		PasswordHash: auth.HashPassword("admin"),
		IsAdmin:      true,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	return s.db.Create(admin).Error
}

// DB returns the underlying GORM database connection. Useful for tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueConstraintError checks if the error is a unique constraint
// violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate
// domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
