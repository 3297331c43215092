package storage

import (
	"context"

	"proxyscout/internal/storage/models"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Cache record of the last successful run
	GetCacheRecord(ctx context.Context) (*models.CacheRecord, error) // nil when none stored
	SaveCacheRecord(ctx context.Context, record *models.CacheRecord) error
	ClearCacheRecord(ctx context.Context) error

	// Transactions
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the storage connection
	Close() error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}
