package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sla-engine", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())

	assert.Equal(t, time.Minute, cfg.Sla.SweepInterval)
	assert.InDelta(t, 0.2, cfg.Sla.WarningFraction, 1e-9)
	assert.Equal(t, 4*time.Hour, cfg.Sla.DefaultResponse)
	assert.Equal(t, 48*time.Hour, cfg.Sla.DefaultResolution)
	assert.Equal(t, 5, cfg.Sla.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Sla.BackoffBase)
	assert.Equal(t, 5*time.Minute, cfg.Sla.BackoffMax)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLA_SWEEP_INTERVAL", "30s")
	t.Setenv("SLA_WARNING_FRACTION", "0.5")
	t.Setenv("SLA_MAX_ATTEMPTS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Sla.SweepInterval)
	assert.InDelta(t, 0.5, cfg.Sla.WarningFraction, 1e-9)
	assert.Equal(t, 3, cfg.Sla.MaxAttempts)
}

func TestLoadRejectsBadWarningFraction(t *testing.T) {
	t.Setenv("SLA_WARNING_FRACTION", "1.5")

	_, err := Load()
	assert.Error(t, err)
}
