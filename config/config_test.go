package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("server defaults", func(t *testing.T) {
		assert.Equal(t, "127.0.0.1:8090", cfg.Server.Addr())
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	})
	t.Run("approval defaults", func(t *testing.T) {
		assert.Equal(t, 30*time.Minute, cfg.Approval.Timeout)
		assert.Equal(t, "standard", cfg.Approval.Policy)
		assert.Equal(t, "sqlite", cfg.Approval.Storage.Type)
	})
	t.Run("credential defaults", func(t *testing.T) {
		assert.Equal(t, 5*time.Minute, cfg.Credentials.RefreshBuffer)
		assert.Zero(t, cfg.Credentials.StaticTTL)
	})
	t.Run("task defaults", func(t *testing.T) {
		assert.Equal(t, 1000, cfg.Tasks.MaxTasks)
		assert.Equal(t, time.Hour, cfg.Tasks.Retention)
		assert.Equal(t, 30*time.Second, cfg.Tasks.HeartbeatInterval)
	})
	t.Run("catalog retry is off", func(t *testing.T) {
		assert.False(t, cfg.Catalog.Retry.Enabled)
		assert.True(t, cfg.Accounts.Retry.Enabled)
	})
	t.Run("events are opt-in", func(t *testing.T) {
		assert.False(t, cfg.Events.NATS.Enabled)
		assert.False(t, cfg.MCP.Enabled)
	})
	t.Run("defaults validate", func(t *testing.T) {
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "memory storage",
			mutate: func(c *Config) { c.Approval.Storage.Type = "memory" },
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Approval.Storage.Type = "etcd" },
			wantErr: "unsupported approval storage type",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Approval.Policy = "lenient" },
			wantErr: "unknown approval policy",
		},
		{
			name:    "zero task capacity",
			mutate:  func(c *Config) { c.Tasks.MaxTasks = 0 },
			wantErr: "tasks.max_tasks must be positive",
		},
		{
			name:    "negative duration",
			mutate:  func(c *Config) { c.Approval.Timeout = -time.Second },
			wantErr: "approval.timeout must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, v, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, DefaultConfig().Server, cfg.Server)
		assert.Equal(t, DefaultConfig().Approval.Timeout, cfg.Approval.Timeout)
	})

	t.Run("file values merge over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9100
approval:
  timeout: 10m
  policy: strict
  storage:
    type: memory
tasks:
  max_tasks: 25
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, _, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 9100, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 10*time.Minute, cfg.Approval.Timeout)
		assert.Equal(t, "strict", cfg.Approval.Policy)
		assert.Equal(t, "memory", cfg.Approval.Storage.Type)
		assert.Equal(t, 6379, cfg.Approval.Storage.Redis.Port)
		assert.Equal(t, 25, cfg.Tasks.MaxTasks)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))
		t.Setenv("ADGATE_SERVER_PORT", "9200")
		t.Setenv("ADGATE_APPROVAL_POLICY", "permissive")

		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9200, cfg.Server.Port)
		assert.Equal(t, "permissive", cfg.Approval.Policy)
	})

	t.Run("invalid file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("approval:\n  policy: whatever\n"), 0o644))

		_, _, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown approval policy")
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("ADGATE_CONFIG", "/etc/adgate/env.yaml")
		assert.Equal(t, "custom.yaml", GetConfigPath("custom.yaml"))
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv("ADGATE_CONFIG", "/etc/adgate/env.yaml")
		assert.Equal(t, "/etc/adgate/env.yaml", GetConfigPath(""))
	})
	t.Run("default", func(t *testing.T) {
		t.Setenv("ADGATE_CONFIG", "")
		assert.Equal(t, filepath.Clean(DefaultConfigPath), GetConfigPath(""))
	})
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, Username: "gate", Password: "secret", Database: "adgate", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=gate password=secret dbname=adgate sslmode=disable", p.DSN())
}
