package kv

import (
	"context"
	"encoding/json"
)

// MemorySnapshot keeps the persisted form in memory. Used in tests and for
// ephemeral runs where durability is not wanted.
type MemorySnapshot struct {
	data map[string]json.RawMessage

	// SaveErr, when set, makes every Save fail. Tests use it to simulate
	// an unavailable backend.
	SaveErr error
}

func NewMemorySnapshot() *MemorySnapshot {
	return &MemorySnapshot{data: map[string]json.RawMessage{}}
}

func (m *MemorySnapshot) Load(_ context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(m.data))
	for id, doc := range m.data {
		out[id] = doc
	}
	return out, nil
}

func (m *MemorySnapshot) Save(_ context.Context, data map[string]json.RawMessage) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	next := make(map[string]json.RawMessage, len(data))
	for id, doc := range data {
		next[id] = doc
	}
	m.data = next
	return nil
}
