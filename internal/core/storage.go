package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"healthtrack/internal/blob"
	"healthtrack/internal/config"
	"healthtrack/internal/infra/persistence/blobkv"
	"healthtrack/internal/infra/persistence/memory"
	"healthtrack/internal/infra/persistence/postgres"
	"healthtrack/internal/infra/persistence/redis"
	"healthtrack/internal/infra/persistence/sqlite"
	"healthtrack/internal/seed"
	"healthtrack/pkg/domain"
)

// StorageDriver identifies a key-value backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis server
	StorageBlob     StorageDriver = "blob"     // one object per key in a blob store
)

// OpenKeyValueStore selects the backend named by cfg.Storage.Driver.
// Defaults to sqlite when unset.
func OpenKeyValueStore(ctx context.Context, cfg config.Config) (domain.KeyValueStore, error) {
	driver := StorageDriver(cfg.Storage.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.Storage.SQLitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	case StorageRedis:
		return redis.NewStore(ctx, redis.Options{
			Addr:   cfg.Storage.RedisAddr,
			Prefix: cfg.Storage.RedisPrefix,
		})
	case StorageBlob:
		blobs, err := OpenBlobStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return blobkv.New(blobs, cfg.Storage.BlobPrefix), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenBlobStore constructs the blob backend described by cfg.Blob.
func OpenBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver: cfg.Blob.Driver,
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			PathStyle: cfg.Blob.S3PathStyle,
		},
	})
}

// OpenSeedSource returns the seed source named by cfg.Seed. A blob key reads
// the seed from the configured blob store and takes precedence over URL and path.
func OpenSeedSource(ctx context.Context, cfg config.Config) (domain.SeedSource, error) {
	if cfg.Seed.BlobKey != "" {
		blobs, err := OpenBlobStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open seed blob store: %w", err)
		}
		return seed.BlobSource{Store: blobs, Key: cfg.Seed.BlobKey}, nil
	}
	return seed.FromConfig(seed.Config{
		URL:     cfg.Seed.URL,
		Path:    cfg.Seed.Path,
		BaseURL: SeedBaseURL(cfg.Host),
		Timeout: cfg.Seed.Timeout,
	}), nil
}

// SeedBaseURL returns the origin relative seed URLs resolve against: the
// host itself when it is deployed, and empty for local hosts, whose relative
// seed URLs name files.
func SeedBaseURL(host string) string {
	h := strings.TrimSpace(host)
	if DetectEnvironment(h) == EnvDevelopment {
		return ""
	}
	return "https://" + h + "/"
}

// OpenService wires the configured backend, seed source and adapter into a
// Service. The returned close function releases the backend.
func OpenService(ctx context.Context, cfg config.Config, logger Logger, opts ...Option) (*Service, func() error, error) {
	store, err := OpenKeyValueStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	closeStore := func() error {
		if c, ok := store.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	source, err := OpenSeedSource(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Join(err, closeStore())
	}
	adapter := NewAdapter(AdapterConfig{
		Store:        store,
		Seed:         source,
		StorageKey:   cfg.StorageKey,
		MaxDataSize:  cfg.MaxDataSize,
		CacheTimeout: cfg.CacheTimeout,
		Environment:  ParseEnvironment(cfg.Env, cfg.Host),
		Logger:       logger,
	})
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewService(adapter, opts...), closeStore, nil
}

// NewInMemoryService builds a development-mode service over a fresh memory
// backend seeded with the built-in default dataset.
func NewInMemoryService(opts ...Option) *Service {
	adapter := NewAdapter(AdapterConfig{
		Store:       memory.NewStore(),
		Seed:        seed.EmbeddedSource{},
		Environment: EnvDevelopment,
	})
	return NewService(adapter, opts...)
}
