package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
)

var recordColumns = []string{"id", "value", "version", "expires_at", "updated_at"}

// sqlStore implements Store over database/sql. Timestamps are stored as unix
// nanoseconds so expiry comparisons are identical across dialects.
type sqlStore struct {
	db    *sql.DB
	sb    sq.StatementBuilderType
	table string
	now   func() time.Time
}

func newSQLStore(db *sql.DB, placeholder sq.PlaceholderFormat, table string) *sqlStore {
	return &sqlStore{
		db:    db,
		sb:    sq.StatementBuilder.PlaceholderFormat(placeholder),
		table: table,
		now:   time.Now,
	}
}

func nullableExpiry(exp *time.Time) sql.NullInt64 {
	if exp == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: exp.UnixNano(), Valid: true}
}

func (s *sqlStore) live(now time.Time) sq.Sqlizer {
	return sq.Or{
		sq.Eq{"expires_at": nil},
		sq.Gt{"expires_at": now.UnixNano()},
	}
}

func (s *sqlStore) prefixMatch(prefix string) sq.Sqlizer {
	return sq.Expr("substr(id, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		exp     sql.NullInt64
		updated int64
	)
	if err := row.Scan(&rec.Key, &rec.Value, &rec.Version, &exp, &updated); err != nil {
		return nil, err
	}
	if exp.Valid {
		t := time.Unix(0, exp.Int64)
		rec.ExpiresAt = &t
	}
	rec.UpdatedAt = time.Unix(0, updated)
	return &rec, nil
}

// Get returns the live record for key
func (s *sqlStore) Get(ctx context.Context, key string) (*Record, error) {
	query := s.sb.
		Select(recordColumns...).
		From(s.table).
		Where(sq.Eq{"id": key}).
		Where(s.live(s.now()))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return rec, nil
}

// Create writes key unless a live record exists. An expired record is
// replaced and its version keeps increasing.
func (s *sqlStore) Create(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	query := s.sb.
		Insert(s.table).
		Columns(recordColumns...).
		Values(key, value, 1, nullableExpiry(exp), now.UnixNano()).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (id) DO UPDATE SET value = excluded.value, version = %[1]s.version + 1, "+
				"expires_at = excluded.expires_at, updated_at = excluded.updated_at "+
				"WHERE %[1]s.expires_at IS NOT NULL AND %[1]s.expires_at <= ? RETURNING version", s.table),
			now.UnixNano())

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert query: %w", err)
	}

	var version int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("inserting record: %w", err)
	}

	return &Record{Key: key, Value: value, Version: version, ExpiresAt: exp, UpdatedAt: now}, nil
}

// Put writes key unconditionally
func (s *sqlStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	query := s.sb.
		Insert(s.table).
		Columns(recordColumns...).
		Values(key, value, 1, nullableExpiry(exp), now.UnixNano()).
		Suffix(fmt.Sprintf(
			"ON CONFLICT (id) DO UPDATE SET value = excluded.value, version = %[1]s.version + 1, "+
				"expires_at = excluded.expires_at, updated_at = excluded.updated_at RETURNING version", s.table))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building upsert query: %w", err)
	}

	var version int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&version); err != nil {
		return nil, fmt.Errorf("upserting record: %w", err)
	}

	return &Record{Key: key, Value: value, Version: version, ExpiresAt: exp, UpdatedAt: now}, nil
}

// CompareAndSwap replaces key only if its live version equals version
func (s *sqlStore) CompareAndSwap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	query := s.sb.
		Update(s.table).
		Set("value", value).
		Set("version", sq.Expr("version + 1")).
		Set("expires_at", nullableExpiry(exp)).
		Set("updated_at", now.UnixNano()).
		Where(sq.Eq{"id": key, "version": version}).
		Where(s.live(now)).
		Suffix("RETURNING version")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update query: %w", err)
	}

	var next int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missReason(ctx, key)
		}
		return nil, fmt.Errorf("updating record: %w", err)
	}

	return &Record{Key: key, Value: value, Version: next, ExpiresAt: exp, UpdatedAt: now}, nil
}

// CompareAndDelete removes key only if its live version equals version
func (s *sqlStore) CompareAndDelete(ctx context.Context, key string, version int64) error {
	query := s.sb.
		Delete(s.table).
		Where(sq.Eq{"id": key, "version": version}).
		Where(s.live(s.now()))

	n, err := s.exec(ctx, query)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if n == 0 {
		return s.missReason(ctx, key)
	}
	return nil
}

// missReason distinguishes a lost race from an absent key
func (s *sqlStore) missReason(ctx context.Context, key string) error {
	if _, err := s.Get(ctx, key); err != nil {
		return err
	}
	return ErrVersionConflict
}

// Delete removes key
func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if _, err := s.exec(ctx, s.sb.Delete(s.table).Where(sq.Eq{"id": key})); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// List returns live records under prefix ordered by key
func (s *sqlStore) List(ctx context.Context, prefix string) ([]*Record, error) {
	query := s.sb.
		Select(recordColumns...).
		From(s.table).
		Where(s.live(s.now())).
		OrderBy("id ASC")
	if prefix != "" {
		query = query.Where(s.prefixMatch(prefix))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeletePrefix removes every key under prefix
func (s *sqlStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	query := s.sb.Delete(s.table)
	if prefix != "" {
		query = query.Where(s.prefixMatch(prefix))
	}
	n, err := s.exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting prefix %q: %w", prefix, err)
	}
	return int(n), nil
}

// DeleteExpired purges expired records
func (s *sqlStore) DeleteExpired(ctx context.Context) (int, error) {
	query := s.sb.
		Delete(s.table).
		Where(sq.NotEq{"expires_at": nil}).
		Where(sq.LtOrEq{"expires_at": s.now().UnixNano()})

	n, err := s.exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting expired records: %w", err)
	}
	return int(n), nil
}

// Health checks if the database is reachable
func (s *sqlStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) exec(ctx context.Context, query sq.Sqlizer) (int64, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
