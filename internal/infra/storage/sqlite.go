package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	config "github.com/inference-gateway/adgate/config"
	migrations "github.com/inference-gateway/adgate/internal/infra/storage/migrations"
	_ "modernc.org/sqlite"
)

const sqliteTable = "kv_records"

// SQLiteStore implements Store on a local SQLite file. WAL mode and a busy
// timeout let several processes share the file; every compare-and-swap is a
// single statement, so SQLite's write lock makes it atomic.
type SQLiteStore struct {
	*sqlStore
	path string
}

// NewSQLiteStore opens (and migrates) the database at cfg.Path
func NewSQLiteStore(cfg config.SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(30000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runner := migrations.NewMigrationRunner(db, "sqlite")
	if _, err := runner.ApplyMigrations(ctx, migrations.SQLiteMigrations(sqliteTable)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &SQLiteStore{
		sqlStore: newSQLStore(db, sq.Question, sqliteTable),
		path:     cfg.Path,
	}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.path
}
