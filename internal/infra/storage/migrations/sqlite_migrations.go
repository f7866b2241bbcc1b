package migrations

import "fmt"

// SQLiteMigrations returns the key-value schema for SQLite
func SQLiteMigrations(table string) []Migration {
	return []Migration{
		{
			Version:     "001",
			Description: "Versioned key-value records",
			UpSQL: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %[1]s (
					id TEXT PRIMARY KEY,
					value BLOB NOT NULL,
					version INTEGER NOT NULL,
					expires_at INTEGER,
					updated_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
			`, table),
		},
	}
}
