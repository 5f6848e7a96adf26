package telemetry

// This file declares the metrics every layer of the runtime emits.
// It lives in the telemetry package to avoid import cycles: primitive,
// resilience, and adaptive all depend on telemetry, so telemetry cannot
// depend back on them to read their metric names.

func init() {
	// Primitive execution metrics (L1-L3: every Primitive.Execute call)
	DeclareMetrics("primitive", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:    "primitive.execution.duration_ms",
				Type:    "histogram",
				Help:    "Primitive execution time in milliseconds",
				Labels:  []string{"primitive_name", "primitive_kind", "status"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 500, 1000, 5000, 30000},
			},
			{
				Name:   "primitive.execution.count",
				Type:   "counter",
				Help:   "Primitive executions",
				Labels: []string{"primitive_name", "primitive_kind", "status"},
			},
			{
				Name:   "primitive.execution.errors",
				Type:   "counter",
				Help:   "Primitive execution errors by kind",
				Labels: []string{"primitive_name", "error_kind"},
			},
			{
				Name:   "primitive.parallel.fanout",
				Type:   "histogram",
				Help:   "Number of branches in a Parallel execution",
				Labels: []string{"primitive_name"},
			},
		},
	})

	// Resilience layer metrics (L4: retry, timeout, cache, fallback, circuit breaker, saga)
	DeclareMetrics("resilience", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "resilience.retry.attempts",
				Type:   "counter",
				Help:   "Retry attempts made",
				Labels: []string{"primitive_name", "outcome"},
			},
			{
				Name:    "resilience.retry.backoff_ms",
				Type:    "histogram",
				Help:    "Computed backoff delay before a retry attempt",
				Labels:  []string{"primitive_name"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			{
				Name:   "resilience.timeout.exceeded",
				Type:   "counter",
				Help:   "Executions that exceeded their deadline",
				Labels: []string{"primitive_name"},
			},
			{
				Name:   "resilience.cache.hits",
				Type:   "counter",
				Help:   "Cache hits",
				Labels: []string{"primitive_name"},
			},
			{
				Name:   "resilience.cache.misses",
				Type:   "counter",
				Help:   "Cache misses",
				Labels: []string{"primitive_name"},
			},
			{
				Name:   "resilience.fallback.usage",
				Type:   "counter",
				Help:   "Fallback chain invocations",
				Labels: []string{"primitive_name", "candidate", "status"},
			},
			{
				Name:   "resilience.circuit_breaker.state_transitions",
				Type:   "counter",
				Help:   "Circuit breaker state transitions",
				Labels: []string{"primitive_name", "from", "to"},
			},
			{
				Name:   "resilience.circuit_breaker.rejections",
				Type:   "counter",
				Help:   "Executions rejected because the circuit was open",
				Labels: []string{"primitive_name"},
			},
			{
				Name:   "resilience.saga.compensations",
				Type:   "counter",
				Help:   "Saga compensation steps executed",
				Labels: []string{"primitive_name", "status"},
			},
		},
	})

	// Adaptive layer metrics (L5: strategy selection and learning)
	DeclareMetrics("adaptive", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "adaptive.strategy.selections",
				Type:   "counter",
				Help:   "Strategy selections by the adaptive registry",
				Labels: []string{"primitive_name", "strategy_id"},
			},
			{
				Name:   "adaptive.strategy.promotions",
				Type:   "counter",
				Help:   "Strategies promoted from validation to active",
				Labels: []string{"primitive_name", "strategy_id"},
			},
			{
				Name:   "adaptive.strategy.demotions",
				Type:   "counter",
				Help:   "Strategies demoted back to the baseline",
				Labels: []string{"primitive_name", "strategy_id", "reason"},
			},
			{
				Name:    "adaptive.strategy.score",
				Type:    "histogram",
				Help:    "Composite success/latency score computed for a strategy",
				Labels:  []string{"primitive_name", "strategy_id"},
				Buckets: []float64{0, 0.25, 0.5, 0.75, 0.9, 1.0},
			},
		},
	})

	// Durability bridge metrics (L6: strategy + journal persistence)
	DeclareMetrics("durability", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   "durability.writes",
				Type:   "counter",
				Help:   "Strategy or journal writes to the durability store",
				Labels: []string{"store", "record_type"},
			},
			{
				Name:   "durability.errors",
				Type:   "counter",
				Help:   "Durability store write/read failures",
				Labels: []string{"store", "record_type"},
			},
		},
	})
}
