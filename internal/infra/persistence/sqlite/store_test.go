package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "health.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok, err := s.Get(ctx, "drAssistantData"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "drAssistantData", []byte(`{"users":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "drAssistantData", []byte(`{"users":[1]}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path {
		t.Fatalf("unexpected path %s", reopened.Path())
	}
	got, ok, err := reopened.Get(ctx, "drAssistantData")
	if err != nil || !ok || string(got) != `{"users":[1]}` {
		t.Fatalf("unexpected payload %q ok=%v err=%v", got, ok, err)
	}
	var rows int
	if err := reopened.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil || rows != 1 {
		t.Fatalf("expected single upserted row, got %d err=%v", rows, err)
	}

	if err := reopened.Remove(ctx, "drAssistantData"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := reopened.Get(ctx, "drAssistantData"); ok {
		t.Fatalf("expected key removed")
	}
	if err := reopened.Remove(ctx, "drAssistantData"); err != nil {
		t.Fatalf("remove missing key: %v", err)
	}
}

func TestStoreClosedDatabaseReportsErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_ = s.Close()
	if err := s.Set(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected error writing to closed database")
	}
	if _, _, err := s.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error reading from closed database")
	}
}
