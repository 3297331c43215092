package sqlite

const schema = `
-- Persisted setting overrides
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Result of the last successful run
CREATE TABLE IF NOT EXISTS cache_record (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    content_hash TEXT NOT NULL,
    selected_address TEXT,
    selected_credential TEXT,
    composite_score REAL NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

// runMigrations executes the database schema
func runMigrations(db *DB) error {
	_, err := db.db.Exec(schema)
	return err
}
