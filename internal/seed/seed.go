// Package seed supplies the initial health dataset: the embedded default
// document plus file, HTTP and blob-backed sources shaped like it.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"healthtrack/internal/blob"
	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

//go:embed default.json
var defaultDocument []byte

var parseDefault = sync.OnceValues(func() (domain.Dataset, error) {
	return domain.ParseDataset(defaultDocument)
})

// DefaultDocument returns a copy of the embedded default JSON document.
func DefaultDocument() []byte { return append([]byte(nil), defaultDocument...) }

// DefaultDataset returns a fresh copy of the embedded default dataset. An
// unreadable embedded document yields an empty dataset.
func DefaultDataset() domain.Dataset {
	ds, err := parseDefault()
	if err != nil {
		return domain.EmptyDataset()
	}
	return ds.Clone()
}

// ErrTooLarge is returned when a seed document exceeds the dataset size ceiling.
var ErrTooLarge = errors.New("seed document too large")

func readLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, validation.MaxDataSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > validation.MaxDataSize {
		return nil, ErrTooLarge
	}
	return b, nil
}

// EmbeddedSource serves the embedded default dataset.
type EmbeddedSource struct{}

// Fetch implements domain.SeedSource.
func (EmbeddedSource) Fetch(context.Context) (domain.Dataset, error) {
	return DefaultDataset(), nil
}

// FileSource reads the seed document from a local file.
type FileSource struct {
	Path string
}

// Fetch implements domain.SeedSource.
func (s FileSource) Fetch(ctx context.Context) (domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	raw, err := readLimited(f)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read seed file %s: %w", s.Path, err)
	}
	return domain.ParseDataset(raw)
}

// DefaultHTTPTimeout bounds a seed fetch when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// HTTPSource fetches the seed document with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns an HTTPSource whose client times out after timeout
// (DefaultHTTPTimeout when non-positive).
func NewHTTPSource(url string, timeout time.Duration) HTTPSource {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Fetch implements domain.SeedSource.
func (s HTTPSource) Fetch(ctx context.Context) (domain.Dataset, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("build seed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("fetch seed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return domain.Dataset{}, fmt.Errorf("fetch seed: unexpected status %d", resp.StatusCode)
	}
	raw, err := readLimited(resp.Body)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read seed response: %w", err)
	}
	return domain.ParseDataset(raw)
}

// BlobSource reads the seed document from an object store.
type BlobSource struct {
	Store blob.Store
	Key   string
}

// Fetch implements domain.SeedSource.
func (s BlobSource) Fetch(ctx context.Context) (domain.Dataset, error) {
	_, rc, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("get seed blob: %w", err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := readLimited(rc)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("read seed blob %s: %w", s.Key, err)
	}
	return domain.ParseDataset(raw)
}

// Config selects a seed source. A URL without a scheme is relative: it is
// resolved against BaseURL when one is set and read as a local file otherwise.
type Config struct {
	URL     string
	Path    string
	BaseURL string
	Timeout time.Duration
}

// FromConfig picks the HTTP source when a URL is set, then the file source,
// and otherwise the embedded default.
func FromConfig(cfg Config) domain.SeedSource {
	switch {
	case cfg.URL != "":
		ref, err := url.Parse(cfg.URL)
		if err != nil || ref.IsAbs() {
			return NewHTTPSource(cfg.URL, cfg.Timeout)
		}
		if cfg.BaseURL == "" {
			return FileSource{Path: cfg.URL}
		}
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return NewHTTPSource(cfg.URL, cfg.Timeout)
		}
		return NewHTTPSource(base.ResolveReference(ref).String(), cfg.Timeout)
	case cfg.Path != "":
		return FileSource{Path: cfg.Path}
	default:
		return EmbeddedSource{}
	}
}
