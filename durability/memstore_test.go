package durability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreSaveAndList(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	record := StrategyRecord{
		PrimitiveType:  "adaptive.retry",
		Name:           "retry_default_optimized_v1",
		ContextPattern: "production",
		Parameters:     map[string]any{"max_attempts": 5},
		Metrics:        MetricsSummary{TotalExecutions: 10, SuccessCount: 9, SuccessRate: 0.9},
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.SaveStrategy(ctx, record))

	records, err := store.ListStrategies(ctx, "adaptive.retry")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "retry_default_optimized_v1", records[0].Name)
	assert.Equal(t, 0.9, records[0].Metrics.SuccessRate)
}

func TestMemStoreListUnknownPrimitiveType(t *testing.T) {
	store := NewMemStore()
	records, err := store.ListStrategies(context.Background(), "adaptive.cache")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemStoreSaveOverwritesByName(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.SaveStrategy(ctx, StrategyRecord{PrimitiveType: "adaptive.fallback", Name: "s1", Metrics: MetricsSummary{SuccessRate: 0.5}}))
	require.NoError(t, store.SaveStrategy(ctx, StrategyRecord{PrimitiveType: "adaptive.fallback", Name: "s1", Metrics: MetricsSummary{SuccessRate: 0.8}}))

	records, err := store.ListStrategies(ctx, "adaptive.fallback")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0.8, records[0].Metrics.SuccessRate)
}

func TestMemStoreAppendJournal(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.AppendJournal(ctx, "adaptive.timeout", JournalEntry{Timestamp: time.Now(), Event: "promoted", Note: "cleared validation"}))
	require.NoError(t, store.AppendJournal(ctx, "adaptive.timeout", JournalEntry{Timestamp: time.Now(), Event: "demoted", Note: "below baseline"}))

	entries := store.Journal("adaptive.timeout")
	require.Len(t, entries, 2)
	assert.Equal(t, "promoted", entries[0].Event)
	assert.Equal(t, "demoted", entries[1].Event)
}
