// Package memory implements db.Store in process memory for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/bookqa/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	hash      map[string]string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is a map-backed db.Store. Expired keys are dropped lazily on access.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// lookup returns a live entry; caller holds mu.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close drops all data.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		e = &entry{hash: make(map[string]string, len(fields))}
		s.data[key] = e
	}
	if e.hash == nil {
		return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s holds a string value", key)}
	}
	maps.Copy(e.hash, fields)
	return nil
}

// HGetAll returns a copy of all hash fields, empty for a missing key.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return map[string]string{}, nil
	}
	if e.hash == nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s holds a string value", key)}
	}
	return maps.Clone(e.hash), nil
}

// HIncrBy increments a numeric hash field and returns the new value.
func (s *Store) HIncrBy(_ context.Context, key, field string, val int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		e = &entry{hash: make(map[string]string)}
		s.data[key] = e
	}
	if e.hash == nil {
		return 0, &db.Error{Op: db.OpHIncrBy, Err: fmt.Errorf("key %s holds a string value", key)}
	}

	var cur int64
	if raw, ok := e.hash[field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, &db.Error{Op: db.OpHIncrBy, Err: fmt.Errorf("field %s is not an integer", field)}
		}
		cur = n
	}
	cur += val
	e.hash[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

// HIncrByExisting increments a field of an existing hash and sets the extra
// fields in one step. A missing key yields db.ErrKeyNotFound.
func (s *Store) HIncrByExisting(
	_ context.Context, key, field string, val int64, fields map[string]string,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return 0, db.ErrKeyNotFound
	}
	if e.hash == nil {
		return 0, &db.Error{Op: db.OpHIncrByExisting, Err: fmt.Errorf("key %s holds a string value", key)}
	}

	var cur int64
	if raw, ok := e.hash[field]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, &db.Error{Op: db.OpHIncrByExisting, Err: fmt.Errorf("field %s is not an integer", field)}
		}
		cur = n
	}
	cur += val
	e.hash[field] = strconv.FormatInt(cur, 10)
	maps.Copy(e.hash, fields)
	return cur, nil
}

// Del deletes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(key)
	return ok, nil
}

// Get retrieves a string value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if e.hash != nil {
		return nil, &db.Error{Op: db.OpGet, Err: fmt.Errorf("key %s holds a hash", key)}
	}
	return append([]byte(nil), e.value...), nil
}

// MGet returns values aligned with keys. Missing keys and hashes yield nil.
func (s *Store) MGet(_ context.Context, keys []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(keys))
	for i, key := range keys {
		if e, ok := s.lookup(key); ok && e.hash == nil {
			out[i] = append([]byte(nil), e.value...)
		}
	}
	return out, nil
}

// Set stores a value and clears any expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &entry{value: append([]byte(nil), value...)}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Expire sets a TTL. With nx, keys that already expire are left alone.
// Missing keys are ignored.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	return nil
}
