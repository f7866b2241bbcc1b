package storage

import (
	"fmt"

	config "github.com/inference-gateway/adgate/config"
)

// NewStore creates the durable store selected by cfg.Type
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		return NewSQLiteStore(cfg.SQLite)
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
