package adaptive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordAndSuccessRate(t *testing.T) {
	m := NewMetrics()
	m.Record(true, 10*time.Millisecond, "prod")
	m.Record(true, 20*time.Millisecond, "prod")
	m.Record(false, 30*time.Millisecond, "staging")

	assert.Equal(t, int64(3), m.TotalExecutions())
	assert.InDelta(t, 2.0/3.0, m.SuccessRate(), 1e-9)

	snapshot := m.Snapshot()
	assert.ElementsMatch(t, []string{"prod", "staging"}, snapshot.ContextsSeen)
	assert.Greater(t, snapshot.AvgLatencyMs, 0.0)
}

func TestMetricsRecentSuccessRateWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < demotionWindow; i++ {
		m.Record(true, time.Millisecond, "")
	}
	for i := 0; i < 5; i++ {
		m.Record(false, time.Millisecond, "")
	}

	rate, observations := m.RecentSuccessRate()
	assert.Equal(t, demotionWindow, observations)
	assert.Less(t, rate, 1.0)
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 100; i++ {
		m.Record(true, time.Duration(i)*time.Millisecond, "")
	}
	p50 := m.Percentile(50)
	p99 := m.Percentile(99)
	assert.Greater(t, p99, p50)
}

func TestStrategyMatchesContext(t *testing.T) {
	wildcard := NewStrategy("s1", "", "", nil)
	assert.True(t, wildcard.MatchesContext("production"))
	assert.True(t, wildcard.MatchesContext(""))

	scoped := NewStrategy("s2", "", "production", nil)
	assert.True(t, scoped.MatchesContext("production"))
	assert.False(t, scoped.MatchesContext("staging"))
}

func TestStrategyValidationLifecycle(t *testing.T) {
	s := NewStrategy("candidate", "", "", nil)
	s.markValidating()
	assert.True(t, s.IsValidating())
	assert.False(t, s.IsEligible())

	for i := 0; i < 9; i++ {
		assert.False(t, s.observeValidation(10))
	}
	assert.True(t, s.observeValidation(10))

	s.promote()
	assert.False(t, s.IsValidating())
	assert.True(t, s.IsEligible())
}

func TestStrategyDemoteAndCooldown(t *testing.T) {
	s := NewStrategy("candidate", "", "", nil)
	s.demote(20 * time.Millisecond)
	assert.False(t, s.IsEligible())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, s.IsEligible())
}

func TestBaselineAlwaysEligible(t *testing.T) {
	s := NewStrategy("baseline", "", "", nil)
	s.Baseline = true
	s.demote(time.Hour)
	assert.True(t, s.IsEligible())
}
