package durability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wprun/wpr/telemetry"
)

// FileStore persists one human-readable YAML record per strategy plus a
// dated YAML journal file per primitive type. Records are git-diffable
// YAML written with yaml.v3.
//
// Layout under BaseDir:
//
//	<BaseDir>/<primitiveType>/strategies/<name>.yaml
//	<BaseDir>/<primitiveType>/journal/<YYYY-MM-DD>.yaml
type FileStore struct {
	BaseDir string
	mu      sync.Mutex
}

// NewFileStore constructs a FileStore rooted at baseDir, creating it if
// necessary.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("durability: create base dir %q: %w", baseDir, err)
	}
	return &FileStore{BaseDir: baseDir}, nil
}

func (f *FileStore) strategiesDir(primitiveType string) string {
	return filepath.Join(f.BaseDir, primitiveType, "strategies")
}

func (f *FileStore) journalDir(primitiveType string) string {
	return filepath.Join(f.BaseDir, primitiveType, "journal")
}

func (f *FileStore) strategyPath(primitiveType, name string) string {
	return filepath.Join(f.strategiesDir(primitiveType), name+".yaml")
}

func (f *FileStore) journalPath(primitiveType string, day time.Time) string {
	return filepath.Join(f.journalDir(primitiveType), day.Format("2006-01-02")+".yaml")
}

// SaveStrategy implements Store.
func (f *FileStore) SaveStrategy(ctx context.Context, record StrategyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.strategiesDir(record.PrimitiveType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "strategy")
		return fmt.Errorf("durability: create strategies dir: %w", err)
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "strategy")
		return fmt.Errorf("durability: marshal strategy %q: %w", record.Name, err)
	}

	if err := os.WriteFile(f.strategyPath(record.PrimitiveType, record.Name), data, 0o644); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "strategy")
		return fmt.Errorf("durability: write strategy %q: %w", record.Name, err)
	}
	telemetry.Counter(telemetry.MetricDurabilityWrites, "store", "file", "record_type", "strategy")
	return nil
}

// ListStrategies implements Store.
func (f *FileStore) ListStrategies(ctx context.Context, primitiveType string) ([]StrategyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.strategiesDir(primitiveType))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "strategy")
		return nil, fmt.Errorf("durability: list strategies for %q: %w", primitiveType, err)
	}

	var out []StrategyRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.strategiesDir(primitiveType), entry.Name()))
		if err != nil {
			continue
		}
		var record StrategyRecord
		if err := yaml.Unmarshal(data, &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// AppendJournal implements Store. It reads the existing entries for
// today's journal file, appends the new entry, and rewrites the file -
// adequate for the learning-event volumes this layer produces (a handful
// per primitive per day), and keeps the on-disk format a single
// human-readable YAML list rather than a log requiring special tooling to
// inspect.
func (f *FileStore) AppendJournal(ctx context.Context, primitiveType string, entry JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.journalDir(primitiveType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "journal")
		return fmt.Errorf("durability: create journal dir: %w", err)
	}

	path := f.journalPath(primitiveType, entry.Timestamp)
	var entries []JournalEntry
	if data, err := os.ReadFile(path); err == nil {
		_ = yaml.Unmarshal(data, &entries)
	}
	entries = append(entries, entry)

	data, err := yaml.Marshal(entries)
	if err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "journal")
		return fmt.Errorf("durability: marshal journal for %q: %w", primitiveType, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		telemetry.Counter(telemetry.MetricDurabilityErrors, "store", "file", "record_type", "journal")
		return fmt.Errorf("durability: write journal for %q: %w", primitiveType, err)
	}
	telemetry.Counter(telemetry.MetricDurabilityWrites, "store", "file", "record_type", "journal")
	return nil
}
