// Package config loads healthtrack settings from defaults, an optional YAML
// file and HEALTHTRACK_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HEALTHTRACK_"

// FileEnv names the variable holding the optional YAML config path.
const FileEnv = EnvPrefix + "CONFIG"

// Config is the full runtime configuration.
type Config struct {
	Env          string        `yaml:"env"`
	Host         string        `yaml:"host"`
	StorageKey   string        `yaml:"storage_key"`
	MaxDataSize  int           `yaml:"max_data_size"`
	CacheTimeout time.Duration `yaml:"cache_timeout"`
	LogMode      string        `yaml:"log_mode"`
	Storage      Storage       `yaml:"storage"`
	Blob         Blob          `yaml:"blob"`
	Seed         Seed          `yaml:"seed"`
}

// Storage selects the key-value backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
	BlobPrefix  string `yaml:"blob_prefix"`
}

// Blob configures the object store used by the blob backend and blob seeds.
type Blob struct {
	Driver      string `yaml:"driver"`
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Seed selects where the initial dataset comes from.
type Seed struct {
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url"`
	BlobKey string        `yaml:"blob_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Env:          "",
		Host:         "localhost",
		StorageKey:   "drAssistantData",
		MaxDataSize:  1024 * 1024,
		CacheTimeout: 30 * time.Second,
		LogMode:      "development",
		Storage: Storage{
			Driver:      "sqlite",
			SQLitePath:  "healthtrack.db",
			RedisPrefix: "healthtrack:",
			BlobPrefix:  "healthtrack/",
		},
		Blob: Blob{
			Driver: "fs",
			FSRoot: "./blobdata",
		},
		Seed: Seed{
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds the configuration using lookup for environment access.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	if path, ok := lookup(FileEnv); ok && strings.TrimSpace(path) != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ENV", &c.Env)
	str("HOST", &c.Host)
	str("STORAGE_KEY", &c.StorageKey)
	str("LOG_MODE", &c.LogMode)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("REDIS_ADDR", &c.Storage.RedisAddr)
	str("REDIS_PREFIX", &c.Storage.RedisPrefix)
	str("BLOB_PREFIX", &c.Storage.BlobPrefix)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3Endpoint)
	str("SEED_PATH", &c.Seed.Path)
	str("SEED_URL", &c.Seed.URL)
	str("SEED_BLOB_KEY", &c.Seed.BlobKey)

	var errs []error
	if v, ok := lookup(EnvPrefix + "BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBLOB_S3_PATH_STYLE: %w", EnvPrefix, err))
		}
		c.Blob.S3PathStyle = b
	}
	if v, ok := lookup(EnvPrefix + "MAX_DATA_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_DATA_SIZE: %w", EnvPrefix, err))
		}
		c.MaxDataSize = n
	}
	for name, dst := range map[string]*time.Duration{
		"CACHE_TIMEOUT": &c.CacheTimeout,
		"SEED_TIMEOUT":  &c.Seed.Timeout,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			continue
		}
		*dst = d
	}
	return errors.Join(errs...)
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "redis", "blob":
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == "redis" && c.Storage.RedisAddr == "" {
		errs = append(errs, errors.New("redis storage requires a redis addr"))
	}
	if c.MaxDataSize <= 0 {
		errs = append(errs, fmt.Errorf("max data size must be positive, got %d", c.MaxDataSize))
	}
	if c.CacheTimeout <= 0 {
		errs = append(errs, fmt.Errorf("cache timeout must be positive, got %s", c.CacheTimeout))
	}
	if c.StorageKey == "" {
		errs = append(errs, errors.New("storage key is required"))
	}
	return errors.Join(errs...)
}
