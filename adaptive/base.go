package adaptive

import (
	"context"
	"sync"
	"time"

	"github.com/wprun/wpr/durability"
	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/telemetry"
	"github.com/wprun/wpr/wfctx"
)

// promotionMargin is the fixed +5% margin a VALIDATE-mode candidate must
// clear before promotion: its composite score must reach the incumbent's
// score times 1.05. Fallback's learner also applies it as an absolute
// margin on estimated success rate, matching a Python reference's
// fallback strategy optimizer's hard-coded threshold.
const promotionMargin = 0.05

// demotionDelta is the margin by which a learned strategy is demoted once its
// recent success rate falls more than this far below baseline's.
const demotionDelta = 0.10

// defaultDemotionCooldown is how long a demoted strategy is excluded from
// selection before it becomes eligible again.
const defaultDemotionCooldown = 60 * time.Second

// Learner is implemented by each concrete adaptive primitive
// (AdaptiveRetry, AdaptiveCache, AdaptiveTimeout, AdaptiveFallback) to
// supply the two primitive-specific hooks Base cannot generalize: running
// one call under a strategy's parameters, and proposing a new strategy
// from accumulated telemetry.
type Learner[I, O any] interface {
	// ExecuteWithStrategy maps strategy.Parameters onto the wrapped
	// primitive's behavior for one call.
	ExecuteWithStrategy(ctx context.Context, wctx *wfctx.Context, input I, strategy *Strategy) (O, error)
	// ConsiderNewStrategy inspects telemetry gathered so far and returns a
	// candidate strategy if one looks like an improvement over current,
	// or nil if there is nothing to propose yet.
	ConsiderNewStrategy(wctx *wfctx.Context, current *Strategy) *Strategy
}

// SelectorFunc extracts the context key used for strategy selection
// (defaulting to the "environment" metadata key, wfctx.Context.Environment).
type SelectorFunc func(wctx *wfctx.Context) string

// Config configures one Base instance.
type Config struct {
	LearningMode                  LearningMode
	MaxStrategies                 int           `env:"WPR_ADAPTIVE_MAX_STRATEGIES" default:"10"`
	ValidationWindow              int           `env:"WPR_ADAPTIVE_VALIDATION_WINDOW" default:"20"`
	MinObservationsBeforeLearning int           `env:"WPR_ADAPTIVE_MIN_OBSERVATIONS" default:"10"`
	Selector                      SelectorFunc
	Weights                       ScoreWeights
	DemotionCooldown              time.Duration `env:"WPR_ADAPTIVE_DEMOTION_COOLDOWN" default:"60s"`
	// Store, if non-nil, receives every promotion/update and is
	// consulted to hydrate the registry at construction time.
	Store durability.Store
}

// DefaultConfig returns conservative defaults: VALIDATE mode, a
// ten-strategy ceiling, a twenty-execution validation window, and
// default scoring weights, then applies any WPR_ADAPTIVE_* environment
// overrides via telemetry.LoadEnvDefaults.
func DefaultConfig() Config {
	cfg := Config{
		LearningMode:                  Validate,
		MaxStrategies:                 10,
		ValidationWindow:              20,
		MinObservationsBeforeLearning: 10,
		Weights:                       DefaultScoreWeights,
		DemotionCooldown:              defaultDemotionCooldown,
	}
	telemetry.LoadEnvDefaults(&cfg)
	return cfg
}

// Base implements the generic adaptive-primitive machinery:
// strategy selection, execution-under-strategy bookkeeping, the
// OBSERVE/VALIDATE/ACTIVE learning lifecycle, and the bad-strategy
// circuit breaker. Concrete wrappers (Retry, Cache, Timeout, Fallback)
// embed Base and supply a Learner.
type Base[I, O any] struct {
	Name          string
	PrimitiveType string // e.g. "adaptive.retry", used as the durability bridge's partition key
	config        Config
	registry      *Registry
	learner       Learner[I, O]

	considerMu       sync.Mutex // serializes ConsiderNewStrategy
	totalExecutions  int64
	totalAdaptations int64
	shadowCounter    int64
}

// NewBase constructs a Base wrapping learner, seeded with baseline as the
// registry's always-eligible default strategy. If config.Store is set,
// existing strategies for primitiveType are hydrated into the registry
// before it starts serving traffic.
func NewBase[I, O any](name, primitiveType string, baseline *Strategy, config Config, learner Learner[I, O]) *Base[I, O] {
	if config.Selector == nil {
		config.Selector = func(wctx *wfctx.Context) string { return wctx.Environment() }
	}
	if config.Weights == (ScoreWeights{}) {
		config.Weights = DefaultScoreWeights
	}
	if config.MaxStrategies <= 0 {
		config.MaxStrategies = 10
	}
	if config.DemotionCooldown <= 0 {
		config.DemotionCooldown = defaultDemotionCooldown
	}

	baseline.Description = baseline.Description
	registry := NewRegistry(baseline, config.MaxStrategies, config.Weights)

	b := &Base[I, O]{
		Name:          name,
		PrimitiveType: primitiveType,
		config:        config,
		registry:      registry,
		learner:       learner,
	}

	if config.Store != nil {
		b.hydrate()
	}
	return b
}

func (b *Base[I, O]) hydrate() {
	records, err := b.config.Store.ListStrategies(context.Background(), b.PrimitiveType)
	if err != nil || len(records) == 0 {
		return
	}
	for _, record := range records {
		if record.Baseline {
			continue // baseline always comes from the concrete primitive's defaults, never the store
		}
		s := NewStrategy(record.Name, record.Description, record.ContextPattern, record.Parameters)
		b.registry.Add(s)
	}
}

// Execute implements primitive.Primitive: select a strategy for ctx,
// execute under it, record the outcome, and periodically consider
// learning a new strategy.
func (b *Base[I, O]) Execute(ctx context.Context, wctx *wfctx.Context, input I) (O, error) {
	key := b.config.Selector(wctx)
	strategy := b.selectForExecution(key)

	telemetry.Counter(telemetry.MetricStrategySelections, "primitive_name", b.Name, "strategy_id", strategy.Name)

	start := time.Now()
	out, err := b.learner.ExecuteWithStrategy(ctx, wctx, input, strategy)
	latency := time.Since(start)

	strategy.Metrics.Record(err == nil, latency, key)
	telemetry.Histogram(telemetry.MetricStrategyScore, Score(strategy.Metrics.Snapshot(), strategy.IsEligible(), b.config.Weights),
		"primitive_name", b.Name, "strategy_id", strategy.Name)

	b.totalExecutions++
	b.applyBadStrategyBreaker(strategy)
	b.maybeFinishValidation(strategy)
	b.maybeLearn(wctx, key, strategy)

	return out, err
}

// selectForExecution picks the strategy to run under: normally the
// registry's top-ranked candidate, but a fraction of VALIDATE-mode
// traffic is shadow-routed to a strategy still under validation so it
// accumulates its own telemetry.
func (b *Base[I, O]) selectForExecution(key string) *Strategy {
	if b.config.LearningMode == Validate {
		if shadow := b.pickValidating(key); shadow != nil {
			b.shadowCounter++
			if b.shadowCounter%3 == 0 {
				return shadow
			}
		}
	}
	return b.registry.Select(key)
}

func (b *Base[I, O]) pickValidating(key string) *Strategy {
	for _, s := range b.registry.Snapshot() {
		if !s.IsValidating() || !s.MatchesContext(key) {
			continue
		}
		// A candidate whose window is already complete was rejected by
		// maybeFinishValidation and gets no further shadow traffic.
		s.mu.Lock()
		finished := s.validationSeen > 0 && s.validationSeen >= b.config.ValidationWindow
		s.mu.Unlock()
		if !finished {
			return s
		}
	}
	return nil
}

// applyBadStrategyBreaker demotes strategy if its recent success rate has
// fallen more than demotionDelta below baseline's. Baseline
// itself is exempt via Strategy.demote's caller guard below.
func (b *Base[I, O]) applyBadStrategyBreaker(strategy *Strategy) {
	if strategy.Baseline {
		return
	}
	recentRate, observations := strategy.Metrics.RecentSuccessRate()
	if observations < demotionWindow {
		return
	}
	baselineRate := b.registry.Baseline().Metrics.SuccessRate()
	if recentRate < baselineRate-demotionDelta {
		strategy.demote(b.config.DemotionCooldown)
		telemetry.Counter(telemetry.MetricStrategyDemotions, "primitive_name", b.Name, "strategy_id", strategy.Name, "reason", "recent_success_rate_below_baseline")
		b.journal(strategy, "demoted", "recent success rate dropped below baseline - delta threshold")
	}
}

// maybeFinishValidation promotes or discards a VALIDATE-mode candidate
// once it has accumulated the configured validation window of executions.
func (b *Base[I, O]) maybeFinishValidation(strategy *Strategy) {
	if !strategy.IsValidating() {
		return
	}
	if !strategy.observeValidation(b.config.ValidationWindow) {
		return
	}

	incumbentScore := Score(b.registry.Select(strategy.ContextPattern).Metrics.Snapshot(), true, b.config.Weights)
	candidateScore := Score(strategy.Metrics.Snapshot(), true, b.config.Weights)

	if candidateScore >= incumbentScore*(1+promotionMargin) {
		strategy.promote()
		b.totalAdaptations++
		telemetry.Counter(telemetry.MetricStrategyPromotions, "primitive_name", b.Name, "strategy_id", strategy.Name)
		b.journal(strategy, "promoted", "cleared validation window with a score improvement over the incumbent")
		b.persist(strategy)
	} else {
		strategy.demote(0) // immediate: never selected again unless re-learned
		b.journal(strategy, "validation_failed", "did not clear the promotion margin over the incumbent")
	}
}

// maybeLearn invokes the learner's ConsiderNewStrategy hook when gated
// conditions hold and folds any proposal into the registry
// according to the current learning mode.
func (b *Base[I, O]) maybeLearn(wctx *wfctx.Context, key string, current *Strategy) {
	if b.config.LearningMode != Validate && b.config.LearningMode != Active {
		return
	}
	if b.totalExecutions < int64(b.config.MinObservationsBeforeLearning) {
		return
	}

	b.considerMu.Lock()
	defer b.considerMu.Unlock()

	candidate := b.learner.ConsiderNewStrategy(wctx, current)
	if candidate == nil {
		return
	}
	if candidate.ContextPattern == "" {
		candidate.ContextPattern = key
	}
	if _, exists := b.registry.Get(candidate.Name); exists {
		return
	}

	switch b.config.LearningMode {
	case Validate:
		candidate.markValidating()
		b.registry.Add(candidate)
		b.journal(candidate, "proposed", "entering validation window")
	case Active:
		candidate.promote()
		b.registry.Add(candidate)
		b.totalAdaptations++
		telemetry.Counter(telemetry.MetricStrategyPromotions, "primitive_name", b.Name, "strategy_id", candidate.Name)
		b.journal(candidate, "promoted", "active learning mode promotes immediately after the minimum observation window")
		b.persist(candidate)
	}
}

func (b *Base[I, O]) persist(s *Strategy) {
	if b.config.Store == nil {
		return
	}
	snapshot := s.Metrics.Snapshot()
	_ = b.config.Store.SaveStrategy(context.Background(), durability.StrategyRecord{
		PrimitiveType:  b.PrimitiveType,
		Name:           s.Name,
		Description:    s.Description,
		ContextPattern: s.ContextPattern,
		Baseline:       s.Baseline,
		Parameters:     s.Parameters,
		Metrics: durability.MetricsSummary{
			TotalExecutions: snapshot.TotalExecutions,
			SuccessCount:    snapshot.SuccessCount,
			FailureCount:    snapshot.FailureCount,
			SuccessRate:     snapshot.SuccessRate,
			AvgLatencyMs:    snapshot.AvgLatencyMs,
		},
		UpdatedAt: time.Now(),
	})
}

func (b *Base[I, O]) journal(s *Strategy, event, note string) {
	if b.config.Store == nil {
		return
	}
	_ = b.config.Store.AppendJournal(context.Background(), b.PrimitiveType, durability.JournalEntry{
		Timestamp: time.Now(),
		Event:     b.Name + "." + s.Name + "." + event,
		Note:      note,
	})
}

// Stats is the read-only statistics surface: total
// executions, per-strategy metrics, and the current best ranking.
type Stats struct {
	TotalExecutions  int64
	TotalAdaptations int64
	LearningMode     LearningMode
	Strategies       map[string]StrategyStats
	BestStrategy     string
}

// StrategyStats is one strategy's exported metrics snapshot plus its
// eligibility and current composite score.
type StrategyStats struct {
	ContextPattern string
	Baseline       bool
	Eligible       bool
	Score          float64
	Metrics        Snapshot
}

// Stats returns a snapshot of every strategy's metrics and the current
// top-ranked strategy for the wildcard context.
func (b *Base[I, O]) Stats() Stats {
	strategies := make(map[string]StrategyStats)
	for _, s := range b.registry.Snapshot() {
		snapshot := s.Metrics.Snapshot()
		strategies[s.Name] = StrategyStats{
			ContextPattern: s.ContextPattern,
			Baseline:       s.Baseline,
			Eligible:       s.IsEligible(),
			Score:          Score(snapshot, s.IsEligible(), b.config.Weights),
			Metrics:        snapshot,
		}
	}
	best := b.registry.Select("")
	bestName := ""
	if best != nil {
		bestName = best.Name
	}
	return Stats{
		TotalExecutions:  b.totalExecutions,
		TotalAdaptations: b.totalAdaptations,
		LearningMode:     b.config.LearningMode,
		Strategies:       strategies,
		BestStrategy:     bestName,
	}
}

// Registry exposes the underlying strategy registry, e.g. for tests that
// need to assert on strategy count directly.
func (b *Base[I, O]) Registry() *Registry {
	return b.registry
}

var _ primitive.Primitive[any, any] = (*Base[any, any])(nil)
