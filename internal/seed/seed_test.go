package seed

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"healthtrack/internal/blob"
	"healthtrack/pkg/domain"
)

func TestDefaultDatasetIsValidAndIndependent(t *testing.T) {
	ds := DefaultDataset()
	if err := ds.Validate(); err != nil {
		t.Fatalf("default dataset invalid: %v", err)
	}
	if len(ds.Users) != 1 || ds.Users[0].ID != "user-001" {
		t.Fatalf("unexpected users %+v", ds.Users)
	}
	if len(ds.Conditions) != 1 || len(ds.Symptoms) != 2 || len(ds.SymptomRecords) != 4 || len(ds.ConditionUpdates) != 2 {
		t.Fatalf("unexpected collection sizes: %d %d %d %d",
			len(ds.Conditions), len(ds.Symptoms), len(ds.SymptomRecords), len(ds.ConditionUpdates))
	}
	ds.Users[0].Name = "changed"
	ds.Users[0].Profile.Allergies[0] = "changed"
	again := DefaultDataset()
	if again.Users[0].Name != "Demo" || again.Users[0].Profile.Allergies[0] != "Penicillin" {
		t.Fatalf("default dataset shared state between calls: %+v", again.Users[0])
	}
}

func TestEmbeddedSource(t *testing.T) {
	ds, err := EmbeddedSource{}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(ds.Conditions) != 1 {
		t.Fatalf("expected default conditions, got %d", len(ds.Conditions))
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "data.json")
	if err := os.WriteFile(good, DefaultDocument(), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	ds, err := FileSource{Path: good}.Fetch(context.Background())
	if err != nil || len(ds.Users) != 1 {
		t.Fatalf("fetch: %v %+v", err, ds.Users)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"users":[]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (FileSource{Path: bad}).Fetch(context.Background()); !errors.Is(err, domain.ErrInvalidDataset) {
		t.Fatalf("expected ErrInvalidDataset, got %v", err)
	}
	if _, err := (FileSource{Path: filepath.Join(dir, "missing.json")}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}

	huge := filepath.Join(dir, "huge.json")
	if err := os.WriteFile(huge, bytes.Repeat([]byte(" "), 1024*1024+1), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (FileSource{Path: huge}).Fetch(context.Background()); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(DefaultDocument())
		case "/broken.json":
			_, _ = w.Write([]byte("{not json"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ds, err := NewHTTPSource(srv.URL+"/data.json", 0).Fetch(context.Background())
	if err != nil || len(ds.SymptomRecords) != 4 {
		t.Fatalf("fetch: %v records=%d", err, len(ds.SymptomRecords))
	}
	if _, err := NewHTTPSource(srv.URL+"/missing.json", 0).Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := NewHTTPSource(srv.URL+"/broken.json", 0).Fetch(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (HTTPSource{URL: srv.URL + "/data.json"}).Fetch(ctx); err == nil {
		t.Fatalf("expected cancelled context to abort fetch")
	}
}

func TestBlobSource(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMockS3ForTests()
	if _, err := store.Put(ctx, "seed/data.json", bytes.NewReader(DefaultDocument()), blob.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ds, err := BlobSource{Store: store, Key: "seed/data.json"}.Fetch(ctx)
	if err != nil || len(ds.Symptoms) != 2 {
		t.Fatalf("fetch: %v symptoms=%d", err, len(ds.Symptoms))
	}
	if _, err := (BlobSource{Store: store, Key: "seed/missing.json"}).Fetch(ctx); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(Config{}).(EmbeddedSource); !ok {
		t.Fatalf("expected embedded source by default")
	}
	if src, ok := FromConfig(Config{Path: "x.json"}).(FileSource); !ok || src.Path != "x.json" {
		t.Fatalf("expected file source, got %#v", FromConfig(Config{Path: "x.json"}))
	}
	src, ok := FromConfig(Config{URL: "http://example.test/data.json", Path: "x.json"}).(HTTPSource)
	if !ok || src.URL != "http://example.test/data.json" || src.Client.Timeout != DefaultHTTPTimeout {
		t.Fatalf("expected http source to win, got %#v", src)
	}

	cases := []struct {
		name     string
		cfg      Config
		wantURL  string
		wantPath string
	}{
		{"relative on deployed host", Config{URL: "./data/users-db.json", BaseURL: "https://health.example.com/"}, "https://health.example.com/data/users-db.json", ""},
		{"relative on local host", Config{URL: "../../data/users-db.json"}, "", "../../data/users-db.json"},
		{"absolute ignores base", Config{URL: "http://cdn.example.test/seed.json", BaseURL: "https://health.example.com/"}, "http://cdn.example.test/seed.json", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			switch got := FromConfig(tc.cfg).(type) {
			case HTTPSource:
				if got.URL != tc.wantURL {
					t.Fatalf("expected %q, got %q", tc.wantURL, got.URL)
				}
			case FileSource:
				if got.Path != tc.wantPath {
					t.Fatalf("expected path %q, got %q", tc.wantPath, got.Path)
				}
			default:
				t.Fatalf("unexpected source %#v", got)
			}
		})
	}
}
