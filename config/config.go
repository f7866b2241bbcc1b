package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	viper "github.com/spf13/viper"
	gotenv "github.com/subosito/gotenv"
	yaml "gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not given
	DefaultConfigPath = ".adgate/config.yaml"

	// EnvPrefix prefixes every environment override, e.g. ADGATE_SERVER_PORT
	EnvPrefix = "ADGATE"
)

// Config represents the gate configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Accounts    AccountsConfig    `yaml:"accounts" mapstructure:"accounts"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Approval    ApprovalConfig    `yaml:"approval" mapstructure:"approval"`
	Tasks       TasksConfig       `yaml:"tasks" mapstructure:"tasks"`
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Catalog     CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Events      EventsConfig      `yaml:"events" mapstructure:"events"`
	Audit       AuditConfig       `yaml:"audit" mapstructure:"audit"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	MCP         MCPConfig         `yaml:"mcp" mapstructure:"mcp"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AccountsConfig points at the external account/connection service
type AccountsConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	ServiceKey string        `yaml:"service_key" mapstructure:"service_key"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retry      RetryConfig   `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig contains retry logic settings for collaborator HTTP calls
type RetryConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts       int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int  `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int  `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier int  `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
}

// CredentialsConfig contains credential broker cache settings
type CredentialsConfig struct {
	RefreshBuffer time.Duration `yaml:"refresh_buffer" mapstructure:"refresh_buffer"`
	// StaticTTL caches credentials that carry no expiry (API keys); 0 disables it
	StaticTTL time.Duration `yaml:"static_ttl" mapstructure:"static_ttl"`
}

// ApprovalConfig contains approval gateway settings
type ApprovalConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Policy       string        `yaml:"policy" mapstructure:"policy"`
	Storage      StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// StorageConfig contains configuration for durable approval storage backends
type StorageConfig struct {
	Type     string         `yaml:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains Postgres-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	Table    string `yaml:"table" mapstructure:"table"`
}

// DSN renders the lib/pq connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.Username, p.Password, p.Database, p.SSLMode)
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	Database  int    `yaml:"database" mapstructure:"database"`
	Password  string `yaml:"password" mapstructure:"password"`
	Username  string `yaml:"username" mapstructure:"username"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// TasksConfig contains background task tracker settings
type TasksConfig struct {
	MaxTasks          int           `yaml:"max_tasks" mapstructure:"max_tasks"`
	Retention         time.Duration `yaml:"retention" mapstructure:"retention"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	DefaultTimeout    time.Duration `yaml:"default_timeout" mapstructure:"default_timeout"`
}

// ClassifierConfig points at an optional YAML file of extra risk overrides
type ClassifierConfig struct {
	OverridesFile string `yaml:"overrides_file" mapstructure:"overrides_file"`
}

// CatalogConfig points at the tool catalog used for dispatch and schema hints
type CatalogConfig struct {
	Path    string        `yaml:"path" mapstructure:"path"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Retry is off by default: upstream mutations are not idempotent
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// EventsConfig contains lifecycle event publishing settings
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats" mapstructure:"nats"`
}

// NATSConfig contains NATS connection settings
type NATSConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	URL           string        `yaml:"url" mapstructure:"url"`
	SubjectPrefix string        `yaml:"subject_prefix" mapstructure:"subject_prefix"`
	ConnectWait   time.Duration `yaml:"connect_wait" mapstructure:"connect_wait"`
}

// AuditConfig contains audit trail settings
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains application log settings
type LoggingConfig struct {
	Debug bool   `yaml:"debug" mapstructure:"debug"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
}

// MCPConfig contains settings for the MCP tool surface
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8090,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Accounts: AccountsConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				Enabled:           true,
				MaxAttempts:       3,
				InitialBackoffMs:  200,
				MaxBackoffMs:      2000,
				BackoffMultiplier: 2,
			},
		},
		Credentials: CredentialsConfig{
			RefreshBuffer: 5 * time.Minute,
		},
		Approval: ApprovalConfig{
			Timeout:      30 * time.Minute,
			PollInterval: 2 * time.Second,
			Policy:       "standard",
			Storage: StorageConfig{
				Type: "sqlite",
				SQLite: SQLiteConfig{
					Path: ".adgate/approvals.db",
				},
				Postgres: PostgresConfig{
					Host:     "localhost",
					Port:     5432,
					Database: "adgate",
					SSLMode:  "disable",
					Table:    "adgate_kv",
				},
				Redis: RedisConfig{
					Host:      "localhost",
					Port:      6379,
					KeyPrefix: "adgate:",
				},
			},
		},
		Tasks: TasksConfig{
			MaxTasks:          1000,
			Retention:         time.Hour,
			HeartbeatInterval: 30 * time.Second,
			DefaultTimeout:    10 * time.Minute,
		},
		Catalog: CatalogConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				URL:           "nats://127.0.0.1:4222",
				SubjectPrefix: "adgate",
				ConnectWait:   2 * time.Second,
			},
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		MCP: MCPConfig{
			Addr: ":8091",
			Path: "/mcp",
		},
	}
}

// Validate rejects configurations the gate cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Approval.Storage.Type {
	case "memory", "sqlite", "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported approval storage type: %q", c.Approval.Storage.Type))
	}

	switch c.Approval.Policy {
	case "standard", "strict", "permissive":
	default:
		errs = append(errs, fmt.Errorf("unknown approval policy: %q (allowed: standard|strict|permissive)", c.Approval.Policy))
	}

	if c.Tasks.MaxTasks <= 0 {
		errs = append(errs, fmt.Errorf("tasks.max_tasks must be positive, got %d", c.Tasks.MaxTasks))
	}

	durations := map[string]time.Duration{
		"credentials.refresh_buffer": c.Credentials.RefreshBuffer,
		"credentials.static_ttl":     c.Credentials.StaticTTL,
		"approval.timeout":           c.Approval.Timeout,
		"approval.poll_interval":     c.Approval.PollInterval,
		"tasks.retention":            c.Tasks.Retention,
		"tasks.heartbeat_interval":   c.Tasks.HeartbeatInterval,
		"tasks.default_timeout":      c.Tasks.DefaultTimeout,
		"accounts.timeout":           c.Accounts.Timeout,
		"catalog.timeout":            c.Catalog.Timeout,
	}
	for key, d := range durations {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}

	return errors.Join(errs...)
}

// NewViper builds a viper instance seeded with defaults, the optional config
// file, and ADGATE_* environment overrides
func NewViper(configPath string) (*viper.Viper, error) {
	if err := gotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper decodes and validates a configuration
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration at configPath (missing files fall back to defaults)
func Load(configPath string) (*Config, *viper.Viper, error) {
	v, err := NewViper(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// GetConfigPath resolves the config path from the flag value, the
// ADGATE_CONFIG variable, or the default
func GetConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env
	}
	return filepath.Clean(DefaultConfigPath)
}
