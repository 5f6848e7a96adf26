// Package durability implements the optional strategy-persistence bridge:
// a pluggable sink that receives learned-strategy promotions and an
// append-only journal, and can rehydrate a registry on startup. The
// core adaptive layer depends only on the Store interface
// here, never on a concrete backend, so MemStore/FileStore/RedisStore are
// interchangeable without touching adaptive.
package durability

import (
	"context"
	"time"
)

// StrategyRecord is the durable shape of one learned strategy: name,
// parameters, context pattern, and rolling metrics, plus the
// primitive type it belongs to, so one store can multiplex several
// adaptive primitives (AdaptiveRetry, AdaptiveCache, ...).
type StrategyRecord struct {
	PrimitiveType  string         `yaml:"primitive_type"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description,omitempty"`
	ContextPattern string         `yaml:"context_pattern"`
	Baseline       bool           `yaml:"baseline"`
	Parameters     map[string]any `yaml:"parameters"`
	Metrics        MetricsSummary `yaml:"metrics"`
	UpdatedAt      time.Time      `yaml:"updated_at"`
}

// MetricsSummary is the rolling-metrics shape persisted alongside a
// strategy, deliberately a plain struct (not adaptive.Snapshot) so this
// package has no import-time dependency on adaptive - adaptive depends on
// durability, not the other way around.
type MetricsSummary struct {
	TotalExecutions int64   `yaml:"total_executions"`
	SuccessCount    int64   `yaml:"success_count"`
	FailureCount    int64   `yaml:"failure_count"`
	SuccessRate     float64 `yaml:"success_rate"`
	AvgLatencyMs    float64 `yaml:"avg_latency_ms"`
}

// JournalEntry is one append-only event in a primitive type's learning
// journal.
type JournalEntry struct {
	Timestamp time.Time `yaml:"timestamp"`
	Event     string    `yaml:"event"`
	Note      string    `yaml:"note"`
}

// Store is the durability bridge implemented by the host. A faithful
// implementation round-trips strategies and journal entries; the format
// on disk/in the backing store is opaque to the adaptive layer.
type Store interface {
	// SaveStrategy persists or updates one strategy record.
	SaveStrategy(ctx context.Context, record StrategyRecord) error
	// ListStrategies returns every strategy previously saved for
	// primitiveType, used to hydrate a registry at startup.
	ListStrategies(ctx context.Context, primitiveType string) ([]StrategyRecord, error)
	// AppendJournal appends one entry to primitiveType's journal.
	AppendJournal(ctx context.Context, primitiveType string, entry JournalEntry) error
}
