// Package memory provides a process-local key-value backend with read and
// write counters and optional fault injection for tests.
package memory

import (
	"context"
	"sync"

	"healthtrack/pkg/domain"
)

var _ domain.KeyValueStore = (*Store)(nil)

// Store keeps values in a map. Values are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	data      map[string][]byte
	reads     map[string]int
	writes    map[string]int
	getErr    error
	setErr    error
	removeErr error
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data:   make(map[string][]byte),
		reads:  make(map[string]int),
		writes: make(map[string]int),
	}
}

// Get returns a copy of the value at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[key]++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value at key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.writes[key]++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key; a missing key is not an error.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.data, key)
	return nil
}

// Reads reports how many times key was read.
func (s *Store) Reads(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads[key]
}

// Writes reports how many successful writes key received.
func (s *Store) Writes(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[key]
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// FailGets makes subsequent reads return err; nil restores normal behaviour.
func (s *Store) FailGets(err error) {
	s.mu.Lock()
	s.getErr = err
	s.mu.Unlock()
}

// FailSets makes subsequent writes return err; nil restores normal behaviour.
func (s *Store) FailSets(err error) {
	s.mu.Lock()
	s.setErr = err
	s.mu.Unlock()
}

// FailRemoves makes subsequent removes return err; nil restores normal behaviour.
func (s *Store) FailRemoves(err error) {
	s.mu.Lock()
	s.removeErr = err
	s.mu.Unlock()
}
