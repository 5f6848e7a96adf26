//go:build security
// +build security

package durability

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisStoreIntegration exercises RedisStore against a live Redis
// instance. Gated behind the "security" build tag, and skipped outright
// when no Redis is reachable rather than failing the suite.
func TestRedisStoreIntegration(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	store, err := NewRedisStore(redisURL, RedisDBStrategies, "wpr_test")
	if err != nil {
		t.Skip("redis not available, skipping integration test:", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("save and list round-trips a strategy", func(t *testing.T) {
		record := StrategyRecord{
			PrimitiveType:  "adaptive.retry",
			Name:           "retry_integration_test_v1",
			ContextPattern: "production",
			Parameters:     map[string]any{"max_attempts": 5.0},
			Metrics:        MetricsSummary{TotalExecutions: 20, SuccessCount: 18, SuccessRate: 0.9},
			UpdatedAt:      time.Now(),
		}
		require.NoError(t, store.SaveStrategy(ctx, record))

		records, err := store.ListStrategies(ctx, "adaptive.retry")
		require.NoError(t, err)

		var found bool
		for _, r := range records {
			if r.Name == "retry_integration_test_v1" {
				found = true
				assert.Equal(t, "production", r.ContextPattern)
				assert.InDelta(t, 0.9, r.Metrics.SuccessRate, 1e-9)
			}
		}
		assert.True(t, found, "expected to find the saved strategy in ListStrategies")
	})

	t.Run("append journal grows the list", func(t *testing.T) {
		require.NoError(t, store.AppendJournal(ctx, "adaptive.retry", JournalEntry{
			Timestamp: time.Now(),
			Event:     "integration_test",
			Note:      "appended by redisstore_test.go",
		}))
	})
}
