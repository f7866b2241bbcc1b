package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Migration is one forward schema change
type Migration struct {
	// Version orders migrations lexically ("001", "002")
	Version     string
	Description string
	UpSQL       string
}

// MigrationRunner applies migrations and records them in schema_migrations
type MigrationRunner struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
}

// NewMigrationRunner creates a runner for the "sqlite" or "postgres" dialect
func NewMigrationRunner(db *sql.DB, dialect string) *MigrationRunner {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == "postgres" {
		placeholder = sq.Dollar
	}
	return &MigrationRunner{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist
func (r *MigrationRunner) EnsureMigrationTable(ctx context.Context) error {
	var appliedType string
	switch r.dialect {
	case "sqlite":
		appliedType = "INTEGER"
	case "postgres":
		appliedType = "BIGINT"
	default:
		return fmt.Errorf("unsupported dialect: %s", r.dialect)
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at %s NOT NULL
		)`, appliedType)

	if _, err := r.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// AppliedVersions returns the set of applied migration versions
func (r *MigrationRunner) AppliedVersions(ctx context.Context) (map[string]bool, error) {
	sqlStr, args, err := r.sb.Select("version").From("schema_migrations").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// ApplyMigration runs one migration and records it in the same transaction
func (r *MigrationRunner) ApplyMigration(ctx context.Context, migration Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
	}

	recordSQL, args, err := r.sb.
		Insert("schema_migrations").
		Columns("version", "description", "applied_at").
		Values(migration.Version, migration.Description, time.Now().Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, recordSQL, args...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", migration.Version, err)
	}
	return nil
}

// ApplyMigrations applies all pending migrations in version order
func (r *MigrationRunner) ApplyMigrations(ctx context.Context, migrations []Migration) (int, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for i, m := range pending {
		if err := r.ApplyMigration(ctx, m); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
	}
	return len(pending), nil
}
