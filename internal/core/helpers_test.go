package core

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"healthtrack/internal/infra/persistence/memory"
	"healthtrack/internal/seed"
	"healthtrack/pkg/domain"
)

var testNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testNow} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seedFunc func(ctx context.Context) (domain.Dataset, error)

func (f seedFunc) Fetch(ctx context.Context) (domain.Dataset, error) { return f(ctx) }

type testEnv struct {
	store   *memory.Store
	clock   *fakeClock
	adapter *Adapter
	svc     *Service
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock()
	adapter := NewAdapter(AdapterConfig{
		Store:       store,
		Seed:        seed.EmbeddedSource{},
		Environment: EnvDevelopment,
		Clock:       clock,
	})
	seq := 0
	var mu sync.Mutex
	base := []Option{
		WithClock(clock),
		WithIDGenerator(func(prefix string) string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return prefix + "-t" + strconv.Itoa(seq)
		}),
	}
	return &testEnv{
		store:   store,
		clock:   clock,
		adapter: adapter,
		svc:     NewService(adapter, append(base, opts...)...),
	}
}

type captureLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, level+": "+msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *captureLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}
