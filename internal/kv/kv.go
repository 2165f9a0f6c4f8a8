// Package kv implements the durable keyed document stores backing the
// economy ledger. Each collection is held fully in memory and written back
// as one snapshot per mutation; a single mutex per store serializes the
// whole load-mutate-persist span, so concurrent updates never lose writes.
// Records cross the store boundary as deep copies made through their JSON
// form, so map and slice fields inside a returned value never alias the
// stored record.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("record not found")
)

// Snapshot persists a full collection keyed by record id.
type Snapshot interface {
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	Save(ctx context.Context, data map[string]json.RawMessage) error
}

type Store[T any] struct {
	mu   sync.Mutex
	snap Snapshot
	data map[string]T
}

// Open loads the collection from its snapshot backend. A missing snapshot
// yields an empty store; a corrupt one fails with ErrStorageUnavailable.
func Open[T any](ctx context.Context, snap Snapshot) (*Store[T], error) {
	raw, err := snap.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	data := make(map[string]T, len(raw))
	for id, doc := range raw {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("%w: decode record %s: %v", ErrStorageUnavailable, id, err)
		}
		data[id] = v
	}
	return &Store[T]{snap: snap, data: data}, nil
}

// Get returns a copy of the record without touching the backend.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	if !ok {
		var zero T
		return zero, false
	}
	c, err := cloneRecord(v)
	if err != nil {
		var zero T
		return zero, false
	}
	return c, true
}

// GetOrCreate returns the record, creating and persisting defaults() when
// it is absent.
func (s *Store[T]) GetOrCreate(ctx context.Context, id string, defaults func() T) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if v, ok := s.data[id]; ok {
		c, err := cloneRecord(v)
		if err != nil {
			return zero, err
		}
		return c, nil
	}
	v := defaults()
	stored, err := cloneRecord(v)
	if err != nil {
		return zero, err
	}
	if err := s.persistWith(ctx, map[string]T{id: stored}, nil); err != nil {
		return zero, err
	}
	s.data[id] = stored
	return v, nil
}

// Update applies fn to the record and persists the result atomically with
// respect to every other operation on this store. fn receives a deep copy:
// a failed persist, or an error from fn itself, leaves both memory and
// backend at the previous state.
func (s *Store[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	v, ok := s.data[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c, err := cloneRecord(v)
	if err != nil {
		return zero, err
	}
	if err := fn(&c); err != nil {
		return zero, err
	}
	stored, err := cloneRecord(c)
	if err != nil {
		return zero, err
	}
	if err := s.persistWith(ctx, map[string]T{id: stored}, nil); err != nil {
		return zero, err
	}
	s.data[id] = stored
	return c, nil
}

// UpdatePair mutates two records under one lock and one persist, so the
// pair appears atomic to any observer of either record. Used for transfers
// that touch two accounts.
func (s *Store[T]) UpdatePair(ctx context.Context, id1, id2 string, fn func(a, b *T) error) error {
	if id1 == id2 {
		_, err := s.Update(ctx, id1, func(v *T) error {
			return fn(v, v)
		})
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id1]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id1)
	}
	b, ok := s.data[id2]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id2)
	}
	ca, err := cloneRecord(a)
	if err != nil {
		return err
	}
	cb, err := cloneRecord(b)
	if err != nil {
		return err
	}
	if err := fn(&ca, &cb); err != nil {
		return err
	}
	if err := s.persistWith(ctx, map[string]T{id1: ca, id2: cb}, nil); err != nil {
		return err
	}
	s.data[id1] = ca
	s.data[id2] = cb
	return nil
}

// Put replaces the record unconditionally.
func (s *Store[T]) Put(ctx context.Context, id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := cloneRecord(v)
	if err != nil {
		return err
	}
	if err := s.persistWith(ctx, map[string]T{id: stored}, nil); err != nil {
		return err
	}
	s.data[id] = stored
	return nil
}

// Delete removes the record. Deleting an absent record is a no-op.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return nil
	}
	if err := s.persistWith(ctx, nil, []string{id}); err != nil {
		return err
	}
	delete(s.data, id)
	return nil
}

// All returns a deep copy of every record keyed by id.
func (s *Store[T]) All() map[string]T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]T, len(s.data))
	for id, v := range s.data {
		c, err := cloneRecord(v)
		if err != nil {
			continue
		}
		out[id] = c
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// cloneRecord deep-copies a record through its JSON form. Records hold map
// and slice fields, so a plain struct copy would leave the copy sharing
// live containers with the stored value.
func cloneRecord[T any](v T) (T, error) {
	var out T
	doc, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: encode record: %v", ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("%w: decode record: %v", ErrStorageUnavailable, err)
	}
	return out, nil
}

// persistWith writes the full collection with overrides applied and drops
// removed, without committing either to s.data. Callers commit only after
// a successful save. Must be called with s.mu held.
func (s *Store[T]) persistWith(ctx context.Context, overrides map[string]T, removed []string) error {
	raw := make(map[string]json.RawMessage, len(s.data)+len(overrides))
	for id, v := range s.data {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode record %s: %v", ErrStorageUnavailable, id, err)
		}
		raw[id] = doc
	}
	for id, v := range overrides {
		doc, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode record %s: %v", ErrStorageUnavailable, id, err)
		}
		raw[id] = doc
	}
	for _, id := range removed {
		delete(raw, id)
	}
	if err := s.snap.Save(ctx, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
