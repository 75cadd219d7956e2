// Package testutil provides test helpers for setting up in-memory document
// stores, creating fixtures, and making assertions.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"hisaab/internal/docstore"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// SetupTestDB creates a private in-memory SQLite database with the documents
// table migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying DB: %v", err)
	}
	// Subscription goroutines read while tests write; one connection avoids
	// shared-cache table locks.
	sqlDB.SetMaxOpenConns(1)

	if err := docstore.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// TeardownTestDB closes the underlying database connection.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// SetupTestStore returns a live document store over a fresh SQLite database.
// It is closed when the test ends.
func SetupTestStore(t *testing.T) *docstore.Live {
	t.Helper()

	store := docstore.NewLive(docstore.NewGormStore(SetupTestDB(t)))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SetupTestBoltStore returns a live document store over a temporary bolt file.
func SetupTestBoltStore(t *testing.T) *docstore.Live {
	t.Helper()

	backend, err := docstore.OpenBolt(filepath.Join(t.TempDir(), "test.bolt"))
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	store := docstore.NewLive(backend)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
