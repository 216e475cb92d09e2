package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("EPISODE_MAX_CYCLES", "")
	t.Setenv("DELEGATE_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, 40, cfg.Episode.MaxCycles)
	assert.Equal(t, 5*time.Second, cfg.Episode.NetworkIdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.Episode.SettleDelay)
	assert.Equal(t, time.Second, cfg.Episode.HighlightPause)
	assert.Equal(t, 1600, cfg.Browser.ViewportWidth)
	assert.Equal(t, 900, cfg.Browser.ViewportHeight)
	assert.InDelta(t, 37.785834, cfg.Browser.Latitude, 1e-9)
	assert.InDelta(t, -122.417168, cfg.Browser.Longitude, 1e-9)
	assert.Equal(t, "process", cfg.Delegate.Mode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "agent")
	t.Setenv("DB_PASS", "secret")
	t.Setenv("DB_NAME", "episodes")
	t.Setenv("EPISODE_SETTLE_DELAY", "250")
	t.Setenv("EPISODE_NETWORK_IDLE_TIMEOUT", "1500ms")
	t.Setenv("PW_HEADLESS", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "postgres://agent:secret@db:5432/episodes?sslmode=disable", cfg.Database.MigrateURL())
	assert.Contains(t, cfg.Database.DSN(), "host=db")
	assert.Equal(t, 250*time.Millisecond, cfg.Episode.SettleDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Episode.NetworkIdleTimeout)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-positive cycles", map[string]string{"EPISODE_MAX_CYCLES": "0"}},
		{"unknown delegate mode", map[string]string{"DELEGATE_MODE": "grpc"}},
		{"http delegate without url", map[string]string{"DELEGATE_MODE": "http", "DELEGATE_URL": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
