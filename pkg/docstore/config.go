package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Config for the document store backend
type Config struct {
	Type string // "memory", "filesystem", "postgres", "sqlite"

	// Filesystem config
	FilesystemRoot string

	// SQLite config
	SQLitePath string

	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis config
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Cache config
	CacheEnabled bool
	Cache        CacheConfig
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "filesystem",
		FilesystemRoot:   "/tmp/geoguard",
		SQLitePath:       "geoguard.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		CacheEnabled:     true,
		Cache:            DefaultCacheConfig(),
	}
}

// Recorder receives both operation and cache telemetry
type Recorder interface {
	OperationRecorder
	CacheRecorder
}

// Backend is an opened store plus the raw handles health checks need
type Backend struct {
	Store Store
	DB    *sql.DB
	Redis *redis.Client
}

// Open builds the configured backend, wrapped with instrumentation and,
// when enabled, the read-through cache. recorder may be nil.
func Open(ctx context.Context, cfg Config, recorder Recorder) (*Backend, error) {
	backend := &Backend{}

	var store Store
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem":
		fs, err := NewFileStore(cfg.FilesystemRoot)
		if err != nil {
			return nil, err
		}
		store = fs
	case "sqlite":
		sqlite, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		backend.DB = sqlite.db
		store = sqlite
	case "postgres":
		db, err := OpenPostgres(PostgresConfig{
			URL:      cfg.PostgresURL,
			MaxConns: cfg.PostgresMaxConns,
			MinConns: cfg.PostgresMinConns,
			Timeout:  cfg.PostgresTimeout,
		})
		if err != nil {
			return nil, err
		}
		pg := NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		backend.DB = db
		store = pg
	default:
		return nil, fmt.Errorf("invalid store type: %s (must be memory, filesystem, sqlite, or postgres)", cfg.Type)
	}

	var opRecorder OperationRecorder
	var cacheRecorder CacheRecorder
	if recorder != nil {
		opRecorder, cacheRecorder = recorder, recorder
	}
	store = NewInstrumentedStore(store, cfg.Type, opRecorder)

	if cfg.CacheEnabled {
		if cfg.RedisURL != "" {
			client, err := NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				store.Close()
				return nil, err
			}
			backend.Redis = client
		}
		store = NewCachedStore(store, backend.Redis, cfg.Cache, cacheRecorder)
	}

	backend.Store = store
	return backend, nil
}
