package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sammy/rankgrid/internal/config"
	"gorm.io/gorm"
)

// newTestDB opens a file-backed SQLite database in a per-test temp dir so
// concurrent access goes through WAL like production SQLite deployments.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := InitDB(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns:    2,
		MaxOpenConns:    5,
		ConnMaxLifetime: time.Minute,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	return db
}
