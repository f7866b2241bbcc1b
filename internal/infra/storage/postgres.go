package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	config "github.com/inference-gateway/adgate/config"
	migrations "github.com/inference-gateway/adgate/internal/infra/storage/migrations"
	_ "github.com/lib/pq"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore implements Store on a shared PostgreSQL table so several
// gateway instances see the same approvals.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects to PostgreSQL and migrates the key-value table
func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	table := cfg.Table
	if table == "" {
		table = "adgate_kv"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name %q", table)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("PostgreSQL connection test failed: %w\n\n"+
			"Failed to connect to PostgreSQL. Verify:\n"+
			"  - PostgreSQL server is running at %s:%d\n"+
			"  - Database '%s' exists\n"+
			"  - User '%s' has proper permissions", err, cfg.Host, cfg.Port, cfg.Database, cfg.Username)
	}

	runner := migrations.NewMigrationRunner(db, "postgres")
	if _, err := runner.ApplyMigrations(ctx, migrations.PostgresMigrations(table)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate PostgreSQL database: %w", err)
	}

	return &PostgresStore{sqlStore: newSQLStore(db, sq.Dollar, table)}, nil
}
