package telemetry

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testEnvConfig struct {
	MaxAttempts int           `env:"WPR_TEST_MAX_ATTEMPTS" default:"3"`
	OpenDuration time.Duration `env:"WPR_TEST_OPEN_DURATION" default:"30s"`
	Enabled     bool          `env:"WPR_TEST_ENABLED"`
	Name        string        `env:"WPR_TEST_NAME"`
	Unannotated string
}

func TestLoadEnvDefaultsAppliesEnvOverride(t *testing.T) {
	os.Setenv("WPR_TEST_MAX_ATTEMPTS", "7")
	defer os.Unsetenv("WPR_TEST_MAX_ATTEMPTS")

	cfg := &testEnvConfig{MaxAttempts: 3}
	LoadEnvDefaults(cfg)

	assert.Equal(t, 7, cfg.MaxAttempts)
}

func TestLoadEnvDefaultsAppliesDurationOverride(t *testing.T) {
	os.Setenv("WPR_TEST_OPEN_DURATION", "45s")
	defer os.Unsetenv("WPR_TEST_OPEN_DURATION")

	cfg := &testEnvConfig{}
	LoadEnvDefaults(cfg)

	assert.Equal(t, 45*time.Second, cfg.OpenDuration)
}

func TestLoadEnvDefaultsFallsBackToTagDefaultOnZeroValue(t *testing.T) {
	cfg := &testEnvConfig{}
	LoadEnvDefaults(cfg)

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.OpenDuration)
}

func TestLoadEnvDefaultsLeavesNonZeroFieldAlone(t *testing.T) {
	cfg := &testEnvConfig{MaxAttempts: 9}
	LoadEnvDefaults(cfg)

	assert.Equal(t, 9, cfg.MaxAttempts)
}

func TestLoadEnvDefaultsIgnoresUnannotatedFields(t *testing.T) {
	cfg := &testEnvConfig{Unannotated: "untouched"}
	LoadEnvDefaults(cfg)

	assert.Equal(t, "untouched", cfg.Unannotated)
}

func TestLoadEnvDefaultsNoopOnNonPointer(t *testing.T) {
	cfg := testEnvConfig{}
	assert.NotPanics(t, func() { LoadEnvDefaults(cfg) })
}
