package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired
	ErrNotFound = errors.New("storage: key not found")

	// ErrVersionConflict is returned when a compare-and-swap loses a race
	ErrVersionConflict = errors.New("storage: version conflict")

	// ErrAlreadyExists is returned by Create for a live key
	ErrAlreadyExists = errors.New("storage: key already exists")
)

// Record is one versioned value. Version increases on every write to a live
// key and on a re-create over an expired one.
type Record struct {
	Key       string
	Value     []byte
	Version   int64
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiry at now
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Store is a durable key-value store with atomic per-key compare-and-swap.
// Expired records behave as absent. A ttl of zero means no expiry.
type Store interface {
	// Get returns the live record for key
	Get(ctx context.Context, key string) (*Record, error)

	// Create writes key only if it is absent, failing with ErrAlreadyExists otherwise
	Create(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error)

	// Put writes key unconditionally
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error)

	// CompareAndSwap replaces key only if its current version equals version
	CompareAndSwap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (*Record, error)

	// CompareAndDelete removes key only if its current version equals version
	CompareAndDelete(ctx context.Context, key string, version int64) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// List returns live records whose key starts with prefix, ordered by key
	List(ctx context.Context, prefix string) ([]*Record, error)

	// DeletePrefix removes every key starting with prefix and reports how many
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// DeleteExpired purges expired records and reports how many
	DeleteExpired(ctx context.Context) (int, error)

	// Health checks if the storage is healthy and reachable
	Health(ctx context.Context) error

	// Close releases the underlying connection
	Close() error
}

func expiryFrom(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
