package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"proxyscout/internal/config"
	"proxyscout/internal/logging"
	"proxyscout/internal/metrics"
	"proxyscout/internal/paths"
	"proxyscout/internal/storage"
	"proxyscout/internal/storage/sqlite"
)

// DBPathEnv overrides the database location.
const DBPathEnv = "PROXYSCOUT_DB_PATH"

// App represents the application context
type App struct {
	Storage storage.Storage
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Options controls how New assembles the application.
type Options struct {
	DBPath    string                          // flag value, wins over the environment
	Lookup    func(key string) (string, bool) // defaults to os.LookupEnv
	Overrides map[string]string               // settings keys set from flags
	Console   zapcore.WriteSyncer             // console log sink, defaults to stderr
}

// New opens the database and builds the configuration: defaults, then stored
// settings, then the environment, then flag overrides.
func New(opts Options) (*App, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dbPath, err := resolveDBPath(opts.DBPath, lookup)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cfg, unknown, err := load(context.Background(), store, lookup, opts.Overrides)
	if err != nil {
		store.Close()
		return nil, err
	}
	cfg.Storage.DBPath = dbPath

	switch cfg.Log.File {
	case "":
		if cfg.Log.File, err = paths.LogPath(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to resolve log path: %w", err)
		}
	case "none":
		cfg.Log.File = ""
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Console:    opts.Console,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	for _, key := range unknown {
		logger.Warn("ignoring unknown stored setting", zap.String("key", key))
	}

	return &App{
		Storage: store,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}, nil
}

func resolveDBPath(flag string, lookup func(string) (string, bool)) (string, error) {
	path := flag
	if path == "" {
		path, _ = lookup(DBPathEnv)
	}
	if path == "" {
		return paths.DBPath()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return path, nil
}

func load(ctx context.Context, store storage.Storage, lookup func(string) (string, bool), overrides map[string]string) (*config.Config, []string, error) {
	cfg := config.Default()

	stored, err := store.GetAllSettings(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read settings: %w", err)
	}
	unknown, err := cfg.ApplySettings(stored)
	if err != nil {
		return nil, nil, fmt.Errorf("stored settings: %w", err)
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, nil, fmt.Errorf("environment: %w", err)
	}
	for key, value := range overrides {
		if err := cfg.Set(key, value); err != nil {
			return nil, nil, err
		}
	}
	return cfg, unknown, nil
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
