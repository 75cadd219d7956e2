package database

import (
	"fmt"
	"time"

	"hisaab/internal/config"
	"hisaab/internal/docstore"
	"hisaab/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	driverPostgres = config.StoreDriverPostgres
	driverSQLite   = config.StoreDriverSQLite
	driverBolt     = config.StoreDriverBolt
)

// MigrationsPath is where the postgres SQL migrations live.
var MigrationsPath = "file://migrations"

// Manager owns the document store backend selected by configuration
type Manager struct {
	config *Config
	db     *gorm.DB
	store  docstore.Store
}

// NewManager opens the backend named by config.Driver
func NewManager(cfg *Config) (*Manager, error) {
	m := &Manager{config: cfg}

	switch cfg.Driver {
	case driverPostgres:
		db, err := gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
		m.db = db
		m.store = docstore.NewGormStore(db)

	case driverSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying DB: %w", err)
		}
		// SQLite allows one writer at a time.
		sqlDB.SetMaxOpenConns(1)
		m.db = db
		m.store = docstore.NewGormStore(db)

	case driverBolt:
		store, err := docstore.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		m.store = store

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	logger.Get().Infow("Document store opened", "driver", cfg.Driver)
	return m, nil
}

// RunMigrations brings the schema up to date. Postgres applies the SQL
// migrations; SQLite uses GORM's AutoMigrate; bolt needs nothing.
func (m *Manager) RunMigrations() error {
	switch m.config.Driver {
	case driverPostgres:
		return m.migratePostgres()
	case driverSQLite:
		logger.Get().Info("Migrating sqlite documents table...")
		if err := docstore.AutoMigrate(m.db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	default:
		return nil
	}
}

func (m *Manager) migratePostgres() error {
	logger.Get().Info("Running database migrations...")

	mig, err := migrate.New(MigrationsPath, m.config.URL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// Store returns the opened document store backend
func (m *Manager) Store() docstore.Store {
	return m.store
}

// DB returns the underlying GORM database instance, or nil for bolt
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the backend
func (m *Manager) Close() error {
	return m.store.Close()
}
