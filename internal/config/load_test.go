package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Not parallel: Load reads process environment.
	t.Setenv("ENGINE_DATABASE_URL", "postgres://localhost:5432/engine_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Equal(t, 14, cfg.Engine.EvaluationWindowDays)
	assert.InDelta(t, 1.15, cfg.Engine.OverloadThresholdRatio, 0.0001)
	assert.Equal(t, 10, cfg.Engine.MaxDependencyDepth)
	assert.Equal(t, 10, cfg.Engine.MinSamples)
	assert.InDelta(t, 0.1, cfg.Engine.LearningRate, 0.0001)
	assert.InDelta(t, 0.3, cfg.Engine.MaxAdjustment, 0.0001)
	assert.Equal(t, 5*time.Second, cfg.Engine.EnrichmentTimeout)

	assert.Equal(t, 2, cfg.Task.WorkerCount)
	assert.Equal(t, 100, cfg.Task.QueueSize)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ENGINE_DATABASE_URL", "postgres://localhost:5432/engine_test")
	t.Setenv("ENGINE_SERVER_PORT", "9090")
	t.Setenv("ENGINE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("ENGINE_ENGINE_OVERLOAD_THRESHOLD_RATIO", "1.25")
	t.Setenv("ENGINE_ENGINE_MIN_SAMPLES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.InDelta(t, 1.25, cfg.Engine.OverloadThresholdRatio, 0.0001)
	assert.Equal(t, 5, cfg.Engine.MinSamples)
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing database URL",
			env:  map[string]string{},
		},
		{
			name: "invalid log level",
			env: map[string]string{
				"ENGINE_DATABASE_URL":     "postgres://localhost/x",
				"ENGINE_SERVER_LOG_LEVEL": "loud",
			},
		},
		{
			name: "overload threshold must exceed 1",
			env: map[string]string{
				"ENGINE_DATABASE_URL":                    "postgres://localhost/x",
				"ENGINE_ENGINE_OVERLOAD_THRESHOLD_RATIO": "0.9",
			},
		},
		{
			name: "learning rate above 1",
			env: map[string]string{
				"ENGINE_DATABASE_URL":         "postgres://localhost/x",
				"ENGINE_ENGINE_LEARNING_RATE": "1.5",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, val := range tc.env {
				t.Setenv(k, val)
			}

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
