package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"proxyscout/internal/storage"
	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance. dbPath may be ":memory:".
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serialises
	// writers from the daemon and the CLI.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) handle() dbHandle { return d.db }

// BeginTx starts a new transaction
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements the Transaction interface
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error    { return t.tx.Commit() }
func (t *Tx) Rollback() error  { return t.tx.Rollback() }
func (t *Tx) handle() dbHandle { return t.tx }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, d.handle(), key)
}
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, t.handle(), key)
}

func getSetting(ctx context.Context, h dbHandle, key string) (string, error) {
	var value string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingMissing, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d.handle(), key, value)
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, t.handle(), key, value)
}

func setSetting(ctx context.Context, h dbHandle, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := h.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, d.handle(), key)
}
func (t *Tx) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, t.handle(), key)
}

func deleteSetting(ctx context.Context, h dbHandle, key string) error {
	result, err := h.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pkgerrors.ErrSettingMissing, key)
	}
	return nil
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, d.handle())
}
func (t *Tx) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, t.handle())
}

func getAllSettings(ctx context.Context, h dbHandle) (map[string]string, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ─── Cache record operations ────────────────────────────────────────────────

func (d *DB) GetCacheRecord(ctx context.Context) (*models.CacheRecord, error) {
	return getCacheRecord(ctx, d.handle())
}
func (t *Tx) GetCacheRecord(ctx context.Context) (*models.CacheRecord, error) {
	return getCacheRecord(ctx, t.handle())
}

func getCacheRecord(ctx context.Context, h dbHandle) (*models.CacheRecord, error) {
	query := `
		SELECT content_hash, selected_address, selected_credential, composite_score, updated_at
		FROM cache_record WHERE id = 1
	`
	var (
		record     models.CacheRecord
		address    sql.NullString
		credential sql.NullString
	)
	err := h.QueryRowContext(ctx, query).Scan(
		&record.ContentHash, &address, &credential, &record.CompositeScore, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache record: %w", err)
	}
	record.SelectedAddress = address.String
	record.SelectedCredential = credential.String
	return &record, nil
}

func (d *DB) SaveCacheRecord(ctx context.Context, record *models.CacheRecord) error {
	return saveCacheRecord(ctx, d.handle(), record)
}
func (t *Tx) SaveCacheRecord(ctx context.Context, record *models.CacheRecord) error {
	return saveCacheRecord(ctx, t.handle(), record)
}

func saveCacheRecord(ctx context.Context, h dbHandle, record *models.CacheRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO cache_record (id, content_hash, selected_address, selected_credential, composite_score, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content_hash = excluded.content_hash,
			selected_address = excluded.selected_address,
			selected_credential = excluded.selected_credential,
			composite_score = excluded.composite_score,
			updated_at = excluded.updated_at
	`
	_, err := h.ExecContext(ctx, query,
		record.ContentHash, record.SelectedAddress, record.SelectedCredential,
		record.CompositeScore, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cache record: %w", err)
	}
	return nil
}

func (d *DB) ClearCacheRecord(ctx context.Context) error {
	return clearCacheRecord(ctx, d.handle())
}
func (t *Tx) ClearCacheRecord(ctx context.Context) error {
	return clearCacheRecord(ctx, t.handle())
}

func clearCacheRecord(ctx context.Context, h dbHandle) error {
	_, err := h.ExecContext(ctx, "DELETE FROM cache_record WHERE id = 1")
	return err
}
