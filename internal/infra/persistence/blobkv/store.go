// Package blobkv stores each key as one object in a blob.Store.
package blobkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"healthtrack/internal/blob"
	"healthtrack/pkg/domain"
)

var _ domain.KeyValueStore = (*Store)(nil)

// Store adapts a blob.Store to domain.KeyValueStore. Keys are stored under prefix.
type Store struct {
	blobs  blob.Store
	prefix string
}

// New wraps blobs. The prefix is prepended verbatim to every key.
func New(blobs blob.Store, prefix string) *Store {
	return &Store{blobs: blobs, prefix: prefix}
}

func (s *Store) objectKey(key string) string { return s.prefix + key }

// Get reads the object for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_, rc, err := s.blobs.Get(ctx, s.objectKey(key))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get blob %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read blob %s: %w", key, err)
	}
	return b, true, nil
}

// Set writes value as the object for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.blobs.Put(ctx, s.objectKey(key), bytes.NewReader(value), blob.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	return nil
}

// Remove deletes the object for key; a missing object is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.blobs.Delete(ctx, s.objectKey(key)); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}
