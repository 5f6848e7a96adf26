package adaptive

import (
	"sort"
	"sync"
)

// ScoreWeights are the composite-score weights:
// score = w_success*success_rate + w_latency*latency_score - w_penalty*circuit_breaker_penalty.
type ScoreWeights struct {
	Success float64
	Latency float64
	Penalty float64
}

// DefaultScoreWeights weights success rate over latency (0.7 vs 0.3),
// with a modest penalty term applied to strategies the bad-strategy
// circuit breaker has flagged ineligible.
var DefaultScoreWeights = ScoreWeights{Success: 0.7, Latency: 0.3, Penalty: 0.5}

// Score computes the composite ranking score for a strategy snapshot.
// latencyScore = 1/(1+avgLatencyMs/1000) so a zero-latency strategy
// scores 1 and score decays toward 0 as latency grows.
func Score(snapshot Snapshot, eligible bool, weights ScoreWeights) float64 {
	latencyScore := 1.0 / (1.0 + snapshot.AvgLatencyMs/1000.0)
	score := weights.Success*snapshot.SuccessRate + weights.Latency*latencyScore
	if !eligible {
		score -= weights.Penalty
	}
	return score
}

// Registry holds every strategy known to one adaptive primitive.
// Exactly one entry is the baseline; it is immutable and always eligible.
// Reads take a snapshot under a brief read lock and then run lock-free, so
// the lock is held only for the copy, not while scoring.
type Registry struct {
	mu            sync.RWMutex
	strategies    map[string]*Strategy
	order         []string // construction order, for deterministic iteration
	maxStrategies int
	weights       ScoreWeights
}

// NewRegistry constructs a Registry seeded with baseline, which is marked
// Baseline and added unconditionally regardless of maxStrategies.
func NewRegistry(baseline *Strategy, maxStrategies int, weights ScoreWeights) *Registry {
	baseline.Baseline = true
	baseline.eligible = true
	return &Registry{
		strategies:    map[string]*Strategy{baseline.Name: baseline},
		order:         []string{baseline.Name},
		maxStrategies: maxStrategies,
		weights:       weights,
	}
}

// Baseline returns the always-present baseline strategy.
func (r *Registry) Baseline() *Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if s := r.strategies[name]; s.Baseline {
			return s
		}
	}
	return nil
}

// Get returns the named strategy, if present.
func (r *Registry) Get(name string) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Len reports the number of strategies currently held, baseline included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Add registers a new strategy, evicting the lowest-scoring non-baseline
// strategy first if the registry is already at capacity. If the
// registry is at capacity and holds nothing but the baseline (no
// eviction victim exists), s is dropped rather than pushing Len() past
// maxStrategies.
func (r *Registry) Add(s *Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name]; exists {
		r.strategies[s.Name] = s
		return
	}

	if len(r.order) >= r.maxStrategies {
		if !r.evictLowestScoringLocked() {
			return
		}
	}

	r.strategies[s.Name] = s
	r.order = append(r.order, s.Name)
}

// evictLowestScoringLocked removes the lowest-scoring non-baseline
// strategy, if any exists, and reports whether it evicted one.
func (r *Registry) evictLowestScoringLocked() bool {
	var victim string
	lowest := 0.0
	first := true
	for _, name := range r.order {
		s := r.strategies[name]
		if s.Baseline {
			continue
		}
		score := Score(s.Metrics.Snapshot(), s.IsEligible(), r.weights)
		if first || score < lowest {
			lowest = score
			victim = name
			first = false
		}
	}
	if victim == "" {
		return false
	}
	delete(r.strategies, victim)
	for i, name := range r.order {
		if name == victim {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Candidates returns every strategy eligible for contextKey: those whose
// ContextPattern equals contextKey plus those with the empty/wildcard
// pattern, excluding strategies still under validation.
func (r *Registry) Candidates(contextKey string) []*Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Strategy
	for _, name := range r.order {
		s := r.strategies[name]
		if !s.MatchesContext(contextKey) {
			continue
		}
		if s.IsValidating() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Select ranks Candidates(contextKey) by composite score, breaking ties
// deterministically by name, and returns the top-ranked strategy, falling
// back to the baseline when there are no candidates at all.
func (r *Registry) Select(contextKey string) *Strategy {
	candidates := r.Candidates(contextKey)
	if len(candidates) == 0 {
		return r.Baseline()
	}

	type scored struct {
		strategy *Strategy
		score    float64
	}
	ranked := make([]scored, len(candidates))
	for i, s := range candidates {
		ranked[i] = scored{strategy: s, score: Score(s.Metrics.Snapshot(), s.IsEligible(), r.weights)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].strategy.Name < ranked[j].strategy.Name
	})
	return ranked[0].strategy
}

// Snapshot returns every strategy currently held, in construction order.
func (r *Registry) Snapshot() []*Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Strategy, len(r.order))
	for i, name := range r.order {
		out[i] = r.strategies[name]
	}
	return out
}
