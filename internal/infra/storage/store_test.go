package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	config "github.com/inference-gateway/adgate/config"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func runStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("Create and Get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec, err := store.Create(ctx, "approval/a1", []byte(`{"status":"pending"}`), 0)
		require.NoError(t, err)
		assert.Positive(t, rec.Version)
		assert.Nil(t, rec.ExpiresAt)

		got, err := store.Get(ctx, "approval/a1")
		require.NoError(t, err)
		assert.Equal(t, rec.Version, got.Version)
		assert.Equal(t, `{"status":"pending"}`, string(got.Value))

		_, err = store.Create(ctx, "approval/a1", []byte(`{}`), 0)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("Get missing key", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), "approval/missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Put overwrites and bumps version", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first, err := store.Put(ctx, "k", []byte("1"), 0)
		require.NoError(t, err)
		second, err := store.Put(ctx, "k", []byte("2"), 0)
		require.NoError(t, err)
		assert.Greater(t, second.Version, first.Version)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got.Value))
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec, err := store.Create(ctx, "k", []byte("pending"), 0)
		require.NoError(t, err)

		updated, err := store.CompareAndSwap(ctx, "k", rec.Version, []byte("approved"), 0)
		require.NoError(t, err)
		assert.Greater(t, updated.Version, rec.Version)

		_, err = store.CompareAndSwap(ctx, "k", rec.Version, []byte("rejected"), 0)
		assert.ErrorIs(t, err, ErrVersionConflict)

		_, err = store.CompareAndSwap(ctx, "missing", 1, []byte("x"), 0)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "approved", string(got.Value))
	})

	t.Run("CompareAndDelete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec, err := store.Create(ctx, "k", []byte("v"), 0)
		require.NoError(t, err)

		assert.ErrorIs(t, store.CompareAndDelete(ctx, "k", rec.Version+100), ErrVersionConflict)
		require.NoError(t, store.CompareAndDelete(ctx, "k", rec.Version))
		assert.ErrorIs(t, store.CompareAndDelete(ctx, "k", rec.Version), ErrNotFound)
	})

	t.Run("Concurrent CompareAndSwap has one winner", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec, err := store.Create(ctx, "race", []byte("pending"), 0)
		require.NoError(t, err)

		const workers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.CompareAndSwap(ctx, "race", rec.Version, []byte(strconv.Itoa(i)), 0)
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
	})

	t.Run("Expiry", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec, err := store.Create(ctx, "preapproval/user:u1/admob_create_app", []byte("{}"), 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, rec.ExpiresAt)

		time.Sleep(120 * time.Millisecond)

		_, err = store.Get(ctx, "preapproval/user:u1/admob_create_app")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Create(ctx, "preapproval/user:u1/admob_create_app", []byte("{}"), 0)
		assert.NoError(t, err)

		_, err = store.DeleteExpired(ctx)
		assert.NoError(t, err)
	})

	t.Run("List and DeletePrefix", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, k := range []string{"blocked/user:u1/b_tool", "blocked/user:u1/a_tool", "blocked/user:u10/x", "approval/1"} {
			_, err := store.Put(ctx, k, []byte("{}"), 0)
			require.NoError(t, err)
		}

		recs, err := store.List(ctx, "blocked/user:u1/")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "blocked/user:u1/a_tool", recs[0].Key)
		assert.Equal(t, "blocked/user:u1/b_tool", recs[1].Key)

		n, err := store.DeletePrefix(ctx, "blocked/user:u1/")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		recs, err = store.List(ctx, "blocked/")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "blocked/user:u10/x", recs[0].Key)
	})

	t.Run("Prefix with pattern characters is literal", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Put(ctx, "approval/a_b", []byte("{}"), 0)
		require.NoError(t, err)
		_, err = store.Put(ctx, "approval/axb", []byte("{}"), 0)
		require.NoError(t, err)

		recs, err := store.List(ctx, "approval/a_")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "approval/a_b", recs[0].Key)
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Put(ctx, "k", []byte("v"), 0)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "k"))
		require.NoError(t, store.Delete(ctx, "k"))

		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Health", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Health(context.Background()))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "approvals.db")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	rec, err := store.Create(ctx, "approval/persisted", []byte(`{"status":"pending"}`), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "approval/persisted")
	require.NoError(t, err)
	assert.Equal(t, rec.Version, got.Version)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_SharedAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approvals.db")
	ctx := context.Background()

	a, err := NewSQLiteStore(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := NewSQLiteStore(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	rec, err := a.Create(ctx, "approval/shared", []byte("pending"), 0)
	require.NoError(t, err)

	_, err = b.CompareAndSwap(ctx, "approval/shared", rec.Version, []byte("approved"), 0)
	require.NoError(t, err)

	_, err = a.CompareAndSwap(ctx, "approval/shared", rec.Version, []byte("rejected"), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ADGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ADGATE_TEST_POSTGRES_DSN not set")
	}

	runStoreConformance(t, func(t *testing.T) Store {
		cfg, err := postgresConfigFromURL(dsn)
		require.NoError(t, err)
		cfg.Table = "adgate_kv_test_" + uuid.NewString()[:8]

		store, err := NewPostgresStore(cfg)
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = store.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", cfg.Table))
			_ = store.Close()
		})
		return store
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ADGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ADGATE_TEST_REDIS_ADDR not set")
	}

	runStoreConformance(t, func(t *testing.T) Store {
		host, port := splitHostPort(t, addr)
		store, err := NewRedisStore(config.RedisConfig{
			Host:      host,
			Port:      port,
			KeyPrefix: "adgate-test:" + uuid.NewString() + ":",
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = store.DeletePrefix(context.Background(), "")
			_ = store.Close()
		})
		return store
	})
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = NewStore(config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "a.db")}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	_ = store.Close()

	_, err = NewStore(config.StorageConfig{Type: "etcd"})
	assert.Error(t, err)
}

func postgresConfigFromURL(raw string) (config.PostgresConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return config.PostgresConfig{}, err
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		port = 5432
	}
	password, _ := u.User.Password()
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}
	return config.PostgresConfig{
		Host:     u.Hostname(),
		Port:     port,
		Database: strings.TrimPrefix(u.Path, "/"),
		Username: u.User.Username(),
		Password: password,
		SSLMode:  sslMode,
	}, nil
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, rawPort, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(rawPort)
	require.NoError(t, err)
	return host, port
}
