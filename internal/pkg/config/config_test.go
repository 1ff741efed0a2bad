package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Roster.DefaultCapacity)
	assert.Equal(t, "UTC", c.App.Timezone)
	assert.True(t, c.Reconcile.Enabled)
	assert.Equal(t, 14, c.Billing.TrialDays)
	assert.Equal(t, 120, c.RateLimit.Max)

	h, m, err := c.ReconcileClock()
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.Equal(t, 0, m)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROSTER_DEFAULT_CAPACITY", "6")
	t.Setenv("RECONCILE_AT", "23:45")
	t.Setenv("RECONCILE_ENABLED", "false")
	t.Setenv("APP_PORT", "8080")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Roster.DefaultCapacity)
	assert.False(t, c.Reconcile.Enabled)
	assert.Equal(t, "0.0.0.0:8080", c.ListenAddr())

	h, m, err := c.ReconcileClock()
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 45, m)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("roster:\n  default_capacity: 8\napp:\n  env: dev\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Roster.DefaultCapacity)
	assert.True(t, c.IsDev())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("RECONCILE_AT", "25:99")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("RECONCILE_AT", "02:00")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err = Load("")
	assert.Error(t, err)
}
