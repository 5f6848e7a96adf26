package durability

import (
	"context"
	"sync"
)

// MemStore is the trivial in-memory Store: an in-process bridge for
// callers that want one, and the store the adaptive tests use. An
// adaptive primitive with no Store configured persists nothing; it does
// not fall back to a MemStore.
type MemStore struct {
	mu         sync.Mutex
	strategies map[string]map[string]StrategyRecord // primitiveType -> name -> record
	journals   map[string][]JournalEntry
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		strategies: make(map[string]map[string]StrategyRecord),
		journals:   make(map[string][]JournalEntry),
	}
}

// SaveStrategy implements Store.
func (m *MemStore) SaveStrategy(ctx context.Context, record StrategyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.strategies[record.PrimitiveType]
	if !ok {
		bucket = make(map[string]StrategyRecord)
		m.strategies[record.PrimitiveType] = bucket
	}
	bucket[record.Name] = record
	return nil
}

// ListStrategies implements Store.
func (m *MemStore) ListStrategies(ctx context.Context, primitiveType string) ([]StrategyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.strategies[primitiveType]
	out := make([]StrategyRecord, 0, len(bucket))
	for _, r := range bucket {
		out = append(out, r)
	}
	return out, nil
}

// AppendJournal implements Store.
func (m *MemStore) AppendJournal(ctx context.Context, primitiveType string, entry JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals[primitiveType] = append(m.journals[primitiveType], entry)
	return nil
}

// Journal returns the accumulated journal entries for primitiveType, used
// by tests and post-mortem inspection.
func (m *MemStore) Journal(primitiveType string) []JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JournalEntry, len(m.journals[primitiveType]))
	copy(out, m.journals[primitiveType])
	return out
}
