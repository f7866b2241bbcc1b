package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	redis "github.com/go-redis/redis/v8"
	config "github.com/inference-gateway/adgate/config"
)

const (
	fieldValue   = "v"
	fieldVersion = "ver"
	fieldExpires = "exp"
	fieldUpdated = "upd"
)

// RedisStore implements Store with one hash per key. Conditional writes use
// WATCH/MULTI so a concurrent writer aborts the transaction; expiry uses
// native key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to Redis
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		DB:       cfg.Database,
		Password: cfg.Password,
		Username: cfg.Username,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix, now: time.Now}, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) decode(key string, fields map[string]string) (*Record, error) {
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt version for %s: %w", key, err)
	}

	rec := &Record{Key: key, Value: []byte(fields[fieldValue]), Version: version}
	if raw := fields[fieldUpdated]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.UpdatedAt = time.Unix(0, n)
		}
	}
	if raw := fields[fieldExpires]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(0, n)
			rec.ExpiresAt = &t
		}
	}
	if rec.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// write queues the commands that store value and bump the version
func (s *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, key string, value []byte, exp *time.Time, now time.Time) *redis.IntCmd {
	rk := s.redisKey(key)
	fields := map[string]any{
		fieldValue:   value,
		fieldUpdated: now.UnixNano(),
		fieldExpires: "",
	}
	if exp != nil {
		fields[fieldExpires] = exp.UnixNano()
	}
	pipe.HSet(ctx, rk, fields)
	version := pipe.HIncrBy(ctx, rk, fieldVersion, 1)
	if exp != nil {
		pipe.PExpireAt(ctx, rk, *exp)
	} else {
		pipe.Persist(ctx, rk)
	}
	return version
}

func (s *RedisStore) result(key string, value []byte, exp *time.Time, now time.Time, version *redis.IntCmd) *Record {
	return &Record{Key: key, Value: value, Version: version.Val(), ExpiresAt: exp, UpdatedAt: now}
}

// Get returns the live record for key
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return s.decode(key, fields)
}

// conditional runs fn under WATCH; a concurrent write surfaces as ErrVersionConflict
func (s *RedisStore) conditional(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	err := s.client.Watch(ctx, fn, s.redisKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

// Create writes key only if no live record exists
func (s *RedisStore) Create(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	var version *redis.IntCmd
	err := s.conditional(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, s.redisKey(key)).Result()
		if err != nil {
			return err
		}
		if _, err := s.decode(key, fields); err == nil {
			return ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			version = s.write(ctx, pipe, key, value, exp, now)
			return nil
		})
		return err
	})
	if errors.Is(err, ErrVersionConflict) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return s.result(key, value, exp, now, version), nil
}

// Put writes key unconditionally
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	var version *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		version = s.write(ctx, pipe, key, value, exp, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return s.result(key, value, exp, now, version), nil
}

// CompareAndSwap replaces key only if its version matches
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (*Record, error) {
	now := s.now()
	exp := expiryFrom(now, ttl)

	var next *redis.IntCmd
	err := s.conditional(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, s.redisKey(key)).Result()
		if err != nil {
			return err
		}
		rec, err := s.decode(key, fields)
		if err != nil {
			return err
		}
		if rec.Version != version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			next = s.write(ctx, pipe, key, value, exp, now)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.result(key, value, exp, now, next), nil
}

// CompareAndDelete removes key only if its version matches
func (s *RedisStore) CompareAndDelete(ctx context.Context, key string, version int64) error {
	return s.conditional(ctx, key, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, s.redisKey(key)).Result()
		if err != nil {
			return err
		}
		rec, err := s.decode(key, fields)
		if err != nil {
			return err
		}
		if rec.Version != version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.redisKey(key))
			return nil
		})
		return err
	})
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// scanKeys returns every redis key under prefix
func (s *RedisStore) scanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(s.redisKey(prefix))+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// List returns live records under prefix ordered by key
func (s *RedisStore) List(ctx context.Context, prefix string) ([]*Record, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	out := make([]*Record, 0, len(keys))
	for i, k := range keys {
		rec, err := s.decode(strings.TrimPrefix(k, s.prefix), cmds[i].Val())
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeletePrefix removes every key under prefix
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scanKeys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return int(n), nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself
func (s *RedisStore) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Health checks if Redis is reachable
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
