package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It offers the same
// compare-and-swap semantics as the durable backends but nothing survives a
// restart; use it for tests and single-process development.
type MemoryStore struct {
	records map[string]*Record
	seq     int64
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func cloneRecord(r *Record) *Record {
	out := *r
	out.Value = append([]byte(nil), r.Value...)
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// liveLocked returns the unexpired record for key; callers hold the mutex
func (m *MemoryStore) liveLocked(key string, now time.Time) (*Record, bool) {
	rec, ok := m.records[key]
	if !ok || rec.Expired(now) {
		return nil, false
	}
	return rec, true
}

func (m *MemoryStore) writeLocked(key string, value []byte, ttl time.Duration, now time.Time) *Record {
	m.seq++
	rec := &Record{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   m.seq,
		ExpiresAt: expiryFrom(now, ttl),
		UpdatedAt: now,
	}
	m.records[key] = rec
	return cloneRecord(rec)
}

// Get returns the live record for key
func (m *MemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.liveLocked(key, m.now())
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Create writes key only if no live record exists
func (m *MemoryStore) Create(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	if _, ok := m.liveLocked(key, now); ok {
		return nil, ErrAlreadyExists
	}
	return m.writeLocked(key, value, ttl, now), nil
}

// Put writes key unconditionally
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.writeLocked(key, value, ttl, m.now()), nil
}

// CompareAndSwap replaces key only if its version matches
func (m *MemoryStore) CompareAndSwap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (*Record, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	rec, ok := m.liveLocked(key, now)
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Version != version {
		return nil, ErrVersionConflict
	}
	return m.writeLocked(key, value, ttl, now), nil
}

// CompareAndDelete removes key only if its version matches
func (m *MemoryStore) CompareAndDelete(ctx context.Context, key string, version int64) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec, ok := m.liveLocked(key, m.now())
	if !ok {
		return ErrNotFound
	}
	if rec.Version != version {
		return ErrVersionConflict
	}
	delete(m.records, key)
	return nil
}

// Delete removes key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.records, key)
	return nil
}

// List returns live records under prefix ordered by key
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]*Record, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	now := m.now()
	var out []*Record
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) && !rec.Expired(now) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeletePrefix removes every key under prefix
func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpired purges expired records
func (m *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	removed := 0
	for key, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// Health always succeeds for in-memory storage
func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (m *MemoryStore) Close() error {
	return nil
}
