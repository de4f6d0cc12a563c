package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"healthtrack/internal/seed"
	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

// Default storage keys and limits.
const (
	DefaultStorageKey     = "drAssistantData"
	DefaultCurrentUserKey = "currentUserId"
	DefaultUserID         = "user-001"
	DefaultMaxDataSize    = validation.MaxDataSize

	probeKey = "__test__"
)

// ErrDatasetTooLarge is returned by Save when the serialized dataset exceeds the size ceiling.
var ErrDatasetTooLarge = errors.New("dataset exceeds storage size limit")

// AdapterConfig wires the persistent store adapter.
type AdapterConfig struct {
	Store          domain.KeyValueStore
	Seed           domain.SeedSource
	Default        func() domain.Dataset
	StorageKey     string
	CurrentUserKey string
	MaxDataSize    int
	CacheTimeout   time.Duration
	Environment    Environment
	Clock          Clock
	Logger         Logger
}

// Adapter is the only component that touches the key-value backend and the seed
// source. Load never fails: it degrades from cache to storage to seed to the
// built-in default and finally to an empty dataset.
type Adapter struct {
	mu       sync.Mutex
	store    domain.KeyValueStore
	seed     domain.SeedSource
	fallback func() domain.Dataset
	key      string
	userKey  string
	maxSize  int
	env      Environment
	clock    Clock
	log      Logger
	cache    *Cache

	// unverified is set while the cached dataset stands in for stored data
	// that could not be read. Writes stay cache-only until a read succeeds.
	unverified bool
}

// NewAdapter constructs an adapter, filling unset configuration with defaults.
func NewAdapter(cfg AdapterConfig) *Adapter {
	a := &Adapter{
		store:    cfg.Store,
		seed:     cfg.Seed,
		fallback: cfg.Default,
		key:      cfg.StorageKey,
		userKey:  cfg.CurrentUserKey,
		maxSize:  cfg.MaxDataSize,
		env:      cfg.Environment,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		cache:    NewCache(cfg.CacheTimeout),
	}
	if a.fallback == nil {
		a.fallback = seed.DefaultDataset
	}
	if a.key == "" {
		a.key = DefaultStorageKey
	}
	if a.userKey == "" {
		a.userKey = DefaultCurrentUserKey
	}
	if a.maxSize <= 0 {
		a.maxSize = DefaultMaxDataSize
	}
	if a.env == "" {
		a.env = EnvDevelopment
	}
	if a.clock == nil {
		a.clock = systemClock
	}
	if a.log == nil {
		a.log = noopLogger{}
	}
	return a
}

// Cache exposes the adapter cache.
func (a *Adapter) Cache() *Cache { return a.cache }

// DefaultDataset returns a fresh copy of the built-in default dataset.
func (a *Adapter) DefaultDataset() domain.Dataset { return a.fallback().Clone() }

// Load returns a private copy of the current dataset.
func (a *Adapter) Load(ctx context.Context) (ds domain.Dataset) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("dataset load failed", "panic", fmt.Sprint(r))
			ds = domain.EmptyDataset()
		}
	}()
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if cached, ok := a.cache.Get(now); ok {
		return cached
	}

	usable := a.usableLocked(ctx)
	if usable {
		stored, outcome := a.readStoredLocked(ctx)
		a.unverified = outcome == readFailed
		if outcome == readHit {
			a.cache.Put(stored, now)
			a.log.Debug("dataset loaded from storage", "key", a.key)
			return stored
		}
	}
	persist := usable && !a.unverified

	if a.seed != nil {
		seeded, err := a.seed.Fetch(ctx)
		if err == nil {
			err = seeded.Validate()
		}
		if err == nil {
			a.cache.Put(seeded, now)
			if persist {
				a.writeBestEffortLocked(ctx, seeded)
			}
			a.log.Info("dataset loaded from seed")
			return seeded
		}
		a.log.Warn("seed fetch failed, using built-in default", "error", err)
	}

	def := a.fallback().Clone()
	if err := def.Validate(); err != nil {
		a.log.Error("built-in default dataset invalid", "error", err)
		return domain.EmptyDataset()
	}
	a.cache.Put(def, now)
	if persist {
		a.writeBestEffortLocked(ctx, def)
	}
	return def
}

type readOutcome int

const (
	readMiss readOutcome = iota
	readHit
	readFailed
)

// readStoredLocked reports readMiss for absent, oversized or unreadable data,
// all of which may be overwritten, and readFailed when the backend errored.
func (a *Adapter) readStoredLocked(ctx context.Context) (domain.Dataset, readOutcome) {
	raw, ok, err := a.store.Get(ctx, a.key)
	if err != nil {
		a.log.Warn("read stored dataset failed", "key", a.key, "error", err)
		return domain.Dataset{}, readFailed
	}
	if !ok {
		return domain.Dataset{}, readMiss
	}
	if len(raw) > a.maxSize {
		a.log.Warn("stored dataset too large, discarding", "key", a.key, "bytes", len(raw), "max_bytes", a.maxSize)
		if err := a.store.Remove(ctx, a.key); err != nil {
			a.log.Warn("remove oversized dataset failed", "key", a.key, "error", err)
		}
		return domain.Dataset{}, readMiss
	}
	ds, err := domain.ParseDataset(raw)
	if err != nil {
		a.log.Warn("stored dataset unreadable", "key", a.key, "error", err)
		return domain.Dataset{}, readMiss
	}
	return ds, readHit
}

func (a *Adapter) writeBestEffortLocked(ctx context.Context, ds domain.Dataset) {
	raw, err := ds.Marshal()
	if err != nil {
		a.log.Warn("encode dataset failed", "error", err)
		return
	}
	if len(raw) > a.maxSize {
		a.log.Warn("dataset too large to persist", "bytes", len(raw), "max_bytes", a.maxSize)
		return
	}
	if err := a.store.Set(ctx, a.key, raw); err != nil {
		a.log.Warn("persist dataset failed", "key", a.key, "error", err)
	}
}

// Save validates the dataset shape and size, makes it the cached dataset and
// writes it to storage when storage is usable. A failed physical write is logged
// and does not fail the save: the cache stays authoritative for the session.
// After a failed read of the stored dataset, writes stay cache-only until a
// later Load reads the key successfully.
func (a *Adapter) Save(ctx context.Context, ds domain.Dataset) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("dataset save failed", "panic", fmt.Sprint(r))
			err = fmt.Errorf("save dataset: %v", r)
		}
	}()
	if err := ds.Validate(); err != nil {
		return err
	}
	raw, err := ds.Marshal()
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if len(raw) > a.maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrDatasetTooLarge, len(raw), a.maxSize)
	}
	if usage := float64(len(raw)) / float64(a.maxSize); usage > validation.StorageWarnThreshold {
		a.log.Warn("storage usage high", "usage_percent", fmt.Sprintf("%.1f", usage*100))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.Put(ds, a.clock.Now())
	if !a.usableLocked(ctx) {
		return nil
	}
	if a.unverified {
		a.log.Warn("stored dataset unread, keeping cached copy", "key", a.key)
		return nil
	}
	if err := a.store.Set(ctx, a.key, raw); err != nil {
		a.log.Warn("persist dataset failed, keeping cached copy", "key", a.key, "error", err)
		return nil
	}
	a.log.Debug("dataset saved", "key", a.key, "bytes", len(raw))
	return nil
}

// Usable reports whether the backend may hold health data in this environment
// and accepts a probe write.
func (a *Adapter) Usable(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usableLocked(ctx)
}

func (a *Adapter) usableLocked(ctx context.Context) bool {
	if a.store == nil {
		return false
	}
	if a.env == EnvProduction {
		a.log.Warn("client-side storage disabled in production")
		return false
	}
	if err := a.store.Set(ctx, probeKey, []byte("test")); err != nil {
		a.log.Warn("storage unavailable", "error", err)
		return false
	}
	if err := a.store.Remove(ctx, probeKey); err != nil {
		a.log.Warn("storage unavailable", "error", err)
		return false
	}
	return true
}

// Reset removes the stored dataset and invalidates the cache.
func (a *Adapter) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache.Invalidate()
	a.unverified = false
	if a.store == nil {
		return nil
	}
	if err := a.store.Remove(ctx, a.key); err != nil {
		return fmt.Errorf("reset dataset: %w", err)
	}
	return nil
}

// CurrentUserID returns the remembered current-user id, or DefaultUserID.
func (a *Adapter) CurrentUserID(ctx context.Context) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return DefaultUserID
	}
	raw, ok, err := a.store.Get(ctx, a.userKey)
	if err != nil || !ok || len(raw) == 0 {
		return DefaultUserID
	}
	return string(raw)
}

// SetCurrentUserID remembers the current-user id.
func (a *Adapter) SetCurrentUserID(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return errors.New("no storage configured")
	}
	if err := a.store.Set(ctx, a.userKey, []byte(id)); err != nil {
		return fmt.Errorf("store current user: %w", err)
	}
	return nil
}
