package adaptive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wprun/wpr/durability"
	"github.com/wprun/wpr/primitive"
	"github.com/wprun/wpr/resilience"
	"github.com/wprun/wpr/wfctx"
)

// Retry is the adaptive wrapper around resilience.Retry: instead
// of one fixed RetryConfig, MaxAttempts/InitialDelay/BackoffFactor come
// from the currently-selected Strategy's Parameters, and a new strategy
// is proposed once enough executions have accumulated to compare
// candidates by the composite score.
type Retry[I, O any] struct {
	*Base[I, O]
	name    string
	inner   primitive.Primitive[I, O]
	version int64

	mu    sync.Mutex
	stats map[string]*attemptStats
}

func retryBaselineStrategy() *Strategy {
	return NewStrategy("retry_default", "baseline default exponential backoff", "", map[string]any{
		"max_attempts":     3,
		"initial_delay_ms": 100,
		"max_delay_ms":     5000,
		"backoff_factor":   2.0,
	})
}

// NewRetry constructs an adaptive Retry wrapping inner. store may be nil
// to run without durability.
func NewRetry[I, O any](name string, config Config, store durability.Store, inner primitive.Primitive[I, O]) *Retry[I, O] {
	config.Store = store
	r := &Retry[I, O]{name: name, inner: inner, stats: make(map[string]*attemptStats)}
	r.Base = NewBase[I, O](name, "adaptive.retry", retryBaselineStrategy(), config, r)
	return r
}

func (r *Retry[I, O]) statsFor(strategyName string) *attemptStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.stats[strategyName]; ok {
		return existing
	}
	created := newAttemptStats()
	r.stats[strategyName] = created
	return created
}

func (r *Retry[I, O]) existingStatsFor(strategyName string) (*attemptStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.stats[strategyName]
	return existing, ok
}

// ExecuteWithStrategy implements Learner.
func (r *Retry[I, O]) ExecuteWithStrategy(ctx context.Context, wctx *wfctx.Context, input I, strategy *Strategy) (O, error) {
	params := strategy.Parameters
	stats := r.statsFor(strategy.Name)
	cfg := &resilience.RetryConfig{
		MaxAttempts:   paramInt(params, "max_attempts", 3),
		InitialDelay:  time.Duration(paramInt(params, "initial_delay_ms", 100)) * time.Millisecond,
		MaxDelay:      time.Duration(paramInt(params, "max_delay_ms", 5000)) * time.Millisecond,
		BackoffFactor: paramFloat(params, "backoff_factor", 2.0),
		JitterFrac:    0.1,
		RetryOn:       primitive.IsRetryable,
		OnAttempt: func(attempt int, err error, gapSincePrevious time.Duration) {
			stats.recordAttempt(attempt, err == nil)
			if attempt > 1 {
				stats.recordFailureGap(float64(gapSincePrevious.Milliseconds()))
			}
		},
	}
	exec := resilience.NewRetry(r.name+"."+strategy.Name, cfg, r.inner)
	return exec.Execute(ctx, wctx, input)
}

// successCoverageTarget is the fraction of all observed eventual
// successes that must already have happened by candidateAttempts for
// that attempt count to be considered sufficient.
const successCoverageTarget = 0.99

// minGapObservations is the minimum number of inter-failure gaps before
// the observed median is trusted enough to retune initial_delay_ms.
const minGapObservations = 5

// ConsiderNewStrategy implements Learner. max_attempts is derived from
// the empirical success-by-attempt curve: the smallest attempt count
// that already accounts for successCoverageTarget of every eventual
// success seen so far. initial_delay_ms is retuned toward the observed
// median gap between consecutive failed attempts, rather than carried
// through unchanged.
func (r *Retry[I, O]) ConsiderNewStrategy(wctx *wfctx.Context, current *Strategy) *Strategy {
	snapshot := current.Metrics.Snapshot()
	if snapshot.TotalExecutions < int64(demotionWindow) {
		return nil
	}

	stats, ok := r.existingStatsFor(current.Name)
	if !ok {
		return nil
	}
	curve, observedExecutions := stats.successByAttemptCurve()
	if observedExecutions < int64(demotionWindow) || len(curve) == 0 {
		return nil
	}

	currentAttempts := paramInt(current.Parameters, "max_attempts", 3)
	candidateAttempts := attemptsForCoverage(curve, successCoverageTarget)
	if candidateAttempts < 1 {
		candidateAttempts = 1
	}
	if candidateAttempts > 6 {
		candidateAttempts = 6
	}

	currentDelay := paramInt(current.Parameters, "initial_delay_ms", 100)
	candidateDelay := currentDelay
	if medianGapMs, gapObservations := stats.medianFailureGapMs(); gapObservations >= minGapObservations {
		candidateDelay = int(medianGapMs)
		if candidateDelay < 10 {
			candidateDelay = 10
		}
	}

	if candidateAttempts == currentAttempts && candidateDelay == currentDelay {
		return nil
	}

	estimatedLatency := snapshot.AvgLatencyMs * float64(candidateAttempts) / float64(currentAttempts)
	estimatedScore := Score(Snapshot{SuccessRate: snapshot.SuccessRate, AvgLatencyMs: estimatedLatency}, true, DefaultScoreWeights)
	currentScore := Score(snapshot, true, DefaultScoreWeights)
	if estimatedScore < currentScore {
		return nil
	}

	v := atomic.AddInt64(&r.version, 1)
	params := map[string]any{
		"max_attempts":     candidateAttempts,
		"initial_delay_ms": candidateDelay,
		"max_delay_ms":     paramInt(current.Parameters, "max_delay_ms", 5000),
		"backoff_factor":   paramFloat(current.Parameters, "backoff_factor", 2.0),
	}
	name := fmt.Sprintf("retry_%s_optimized_v%d", current.ContextPattern, v)
	if current.ContextPattern == "" {
		name = fmt.Sprintf("retry_default_optimized_v%d", v)
	}
	return NewStrategy(name, "learned retry attempt-count and delay adjustment", current.ContextPattern, params)
}

// attemptWindow bounds how many inter-failure gaps are kept for median
// estimation.
const attemptWindow = 256

// attemptStats tracks, per strategy, which attempt number finally
// succeeded and how long the gaps between consecutive failed attempts
// were - the empirical signal ConsiderNewStrategy tunes max_attempts
// and initial_delay_ms from, instead of a flat aggregate success rate.
type attemptStats struct {
	mu sync.Mutex

	reachedAttempt   map[int]int64 // attempt number -> executions that got that far
	successAtAttempt map[int]int64 // attempt number -> executions that succeeded on it

	failureGaps []float64 // milliseconds between consecutive failed attempts
	gapCursor   int
}

func newAttemptStats() *attemptStats {
	return &attemptStats{
		reachedAttempt:   make(map[int]int64),
		successAtAttempt: make(map[int]int64),
	}
}

func (a *attemptStats) recordAttempt(attempt int, succeeded bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reachedAttempt[attempt]++
	if succeeded {
		a.successAtAttempt[attempt]++
	}
}

func (a *attemptStats) recordFailureGap(ms float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.failureGaps) < attemptWindow {
		a.failureGaps = append(a.failureGaps, ms)
	} else {
		a.failureGaps[a.gapCursor] = ms
		a.gapCursor = (a.gapCursor + 1) % attemptWindow
	}
}

// successByAttemptCurve returns, for every attempt number reached at
// least once, the cumulative fraction of all observed eventual
// successes achieved by that attempt, plus the number of calls that
// reached attempt 1 (every call does, so this doubles as the total
// observation count).
func (a *attemptStats) successByAttemptCurve() (cumulative map[int]float64, totalExecutions int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	totalExecutions = a.reachedAttempt[1]

	var totalSuccesses int64
	maxAttempt := 0
	for attempt, count := range a.successAtAttempt {
		totalSuccesses += count
		if attempt > maxAttempt {
			maxAttempt = attempt
		}
	}
	if totalSuccesses == 0 {
		return nil, totalExecutions
	}

	cumulative = make(map[int]float64, maxAttempt)
	var running int64
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		running += a.successAtAttempt[attempt]
		cumulative[attempt] = float64(running) / float64(totalSuccesses)
	}
	return cumulative, totalExecutions
}

func (a *attemptStats) medianFailureGapMs() (median float64, observations int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.failureGaps) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(a.failureGaps))
	copy(sorted, a.failureGaps)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, len(sorted)
	}
	return sorted[mid], len(sorted)
}

// attemptsForCoverage returns the smallest attempt number whose
// cumulative success fraction meets coverage, or the highest observed
// attempt number if none does.
func attemptsForCoverage(curve map[int]float64, coverage float64) int {
	if len(curve) == 0 {
		return 0
	}
	max := 0
	for attempt := range curve {
		if attempt > max {
			max = attempt
		}
	}
	for attempt := 1; attempt <= max; attempt++ {
		if curve[attempt] >= coverage {
			return attempt
		}
	}
	return max
}
