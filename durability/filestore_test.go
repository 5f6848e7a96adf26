package durability

import (
	"context"
	"os"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSaveAndList(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	record := StrategyRecord{
		PrimitiveType:  "adaptive.cache",
		Name:           "cache_default_optimized_v1",
		ContextPattern: "staging",
		Parameters:     map[string]any{"ttl_seconds": 30},
		Metrics:        MetricsSummary{TotalExecutions: 40, SuccessCount: 38, SuccessRate: 0.95},
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.SaveStrategy(ctx, record))

	records, err := store.ListStrategies(ctx, "adaptive.cache")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cache_default_optimized_v1", records[0].Name)
	assert.Equal(t, "staging", records[0].ContextPattern)
	assert.InDelta(t, 0.95, records[0].Metrics.SuccessRate, 1e-9)
}

func TestFileStoreListMissingDirReturnsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	records, err := store.ListStrategies(context.Background(), "adaptive.unknown")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStoreAppendJournalAccumulatesSameDay(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendJournal(ctx, "adaptive.retry", JournalEntry{Timestamp: now, Event: "proposed", Note: "entering validation"}))
	require.NoError(t, store.AppendJournal(ctx, "adaptive.retry", JournalEntry{Timestamp: now.Add(time.Minute), Event: "promoted", Note: "cleared margin"}))

	raw, err := os.ReadFile(store.journalPath("adaptive.retry", now))
	require.NoError(t, err)
	var entries []JournalEntry
	require.NoError(t, yaml.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "proposed", entries[0].Event)
	assert.Equal(t, "promoted", entries[1].Event)
}
