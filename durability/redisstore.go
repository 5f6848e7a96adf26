package durability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wprun/wpr/telemetry"
)

// RedisDBStrategies is the default Redis DB this store isolates its keys
// into, one DB per concern rather than sharing a DB with unrelated
// application data.
const RedisDBStrategies = 4

// RedisStore persists learned strategies and their journals in Redis,
// with its own DB index, a key namespace, and a short connect-time health
// check. Strategy records are JSON-encoded values under
// "<namespace>:strategy:<primitiveType>:<name>"; a companion Redis set
// "<namespace>:strategies:<primitiveType>" tracks member names so
// ListStrategies can use SMEMBERS instead of a KEYS scan. Journal entries
// are appended to a Redis list "<namespace>:journal:<primitiveType>".
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to redisURL, selects db for isolation, and
// verifies connectivity with a Ping bounded to five seconds.
func NewRedisStore(redisURL string, db int, namespace string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("durability: redis URL is required")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("durability: invalid redis URL: %w", err)
	}
	if db >= 0 && db <= 15 {
		opt.DB = db
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("durability: connect to redis DB %d: %w", db, err)
	}

	if namespace == "" {
		namespace = "wpr"
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

// Close closes the underlying Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(parts ...string) string {
	key := r.namespace
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// SaveStrategy implements Store.
func (r *RedisStore) SaveStrategy(ctx context.Context, record StrategyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "strategy")
		return fmt.Errorf("durability: marshal strategy %q: %w", record.Name, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key("strategy", record.PrimitiveType, record.Name), data, 0)
	pipe.SAdd(ctx, r.key("strategies", record.PrimitiveType), record.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "strategy")
		return fmt.Errorf("durability: save strategy %q: %w", record.Name, err)
	}
	telemetry.Counter(telemetry.MetricDurabilityWrites, "store", "redis", "record_type", "strategy")
	return nil
}

// ListStrategies implements Store.
func (r *RedisStore) ListStrategies(ctx context.Context, primitiveType string) ([]StrategyRecord, error) {
	names, err := r.client.SMembers(ctx, r.key("strategies", primitiveType)).Result()
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "strategy")
		return nil, fmt.Errorf("durability: list strategies for %q: %w", primitiveType, err)
	}

	out := make([]StrategyRecord, 0, len(names))
	for _, name := range names {
		data, err := r.client.Get(ctx, r.key("strategy", primitiveType, name)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "strategy")
			return nil, fmt.Errorf("durability: load strategy %q: %w", name, err)
		}
		var record StrategyRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// AppendJournal implements Store.
func (r *RedisStore) AppendJournal(ctx context.Context, primitiveType string, entry JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "journal")
		return fmt.Errorf("durability: marshal journal entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.key("journal", primitiveType), data).Err(); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "redis", "record_type", "journal")
		return fmt.Errorf("durability: append journal for %q: %w", primitiveType, err)
	}
	telemetry.Counter(telemetry.MetricDurabilityWrites, "store", "redis", "record_type", "journal")
	return nil
}
