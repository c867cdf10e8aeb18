// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package record

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory Store. Records are deep-copied on every read
// and write so no live reference ever escapes a transaction's scope.
//
// Thread-safety: all access is serialized by mu, making Update an exclusive
// scoped transaction over the whole store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Has implements Tx.
func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	return ok, nil
}

// Get implements Tx.
func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(rec), nil
}

// Set implements Tx.
func (s *MemoryStore) Set(_ context.Context, key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = deepCopy(rec)
	return nil
}

// Delete implements Tx.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Len implements Tx.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Update implements Store. Writes made through the transaction are staged
// in an overlay and applied only when fn returns nil, so an error or panic
// inside fn leaves the store untouched.
func (s *MemoryStore) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{base: s.records, staged: make(map[string]Record), deleted: make(map[string]bool)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for key := range tx.deleted {
		delete(s.records, key)
	}
	maps.Copy(s.records, tx.staged)
	return nil
}

// memTx overlays staged writes on the base map. The caller holds the store
// mutex for the transaction's whole lifetime.
type memTx struct {
	base    map[string]Record
	staged  map[string]Record
	deleted map[string]bool
}

func (t *memTx) Has(_ context.Context, key string) (bool, error) {
	if t.deleted[key] {
		return false, nil
	}
	if _, ok := t.staged[key]; ok {
		return true, nil
	}
	_, ok := t.base[key]
	return ok, nil
}

func (t *memTx) Get(ctx context.Context, key string) (Record, error) {
	ok, err := t.Has(ctx, key)
	if err != nil || !ok {
		return nil, ErrNotFound
	}
	if rec, staged := t.staged[key]; staged {
		return deepCopy(rec), nil
	}
	return deepCopy(t.base[key]), nil
}

func (t *memTx) Set(_ context.Context, key string, rec Record) error {
	delete(t.deleted, key)
	t.staged[key] = deepCopy(rec)
	return nil
}

func (t *memTx) Delete(ctx context.Context, key string) error {
	ok, err := t.Has(ctx, key)
	if err != nil || !ok {
		return ErrNotFound
	}
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func (t *memTx) Len(_ context.Context) (int, error) {
	n := 0
	for key := range t.base {
		if !t.deleted[key] {
			n++
		}
	}
	for key := range t.staged {
		if _, inBase := t.base[key]; !inBase {
			n++
		}
	}
	return n, nil
}

// deepCopy clones a JSON-shaped value tree.
func deepCopy(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return deepCopy(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
