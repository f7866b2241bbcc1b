package migrations

import "fmt"

// PostgresMigrations returns the key-value schema for PostgreSQL
func PostgresMigrations(table string) []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Versioned key-value records",
			UpSQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %[1]s (
					id TEXT PRIMARY KEY,
					value BYTEA NOT NULL,
					version BIGINT NOT NULL,
					expires_at BIGINT,
					updated_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at)
					WHERE expires_at IS NOT NULL;
			`, table),
		},
	}
}
