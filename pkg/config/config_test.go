package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.RealtimeURL)
	assert.Equal(t, "athletics", cfg.RealtimeChannel)
	assert.Equal(t, 3*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.ResponseTimeout)
	assert.Equal(t, 10*time.Second, cfg.LiveRaceStartTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.LiveRaceTick)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CorsOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "ENV=production\nREALTIME_URL=wss://rt.example.com/connection/websocket\nMAX_RECONNECT_ATTEMPTS=3\nCACHE_TTL=90s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "wss://rt.example.com/connection/websocket", cfg.RealtimeURL)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("MOCK_DELAY", "25ms")
	t.Setenv("REALTIME_CHANNEL", "coach-room")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 25*time.Millisecond, cfg.MockDelay)
	assert.Equal(t, "coach-room", cfg.RealtimeChannel)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"http realtime url", func(c *Config) { c.RealtimeURL = "http://example.com" }},
		{"empty channel", func(c *Config) { c.RealtimeChannel = "" }},
		{"zero reconnect interval", func(c *Config) { c.ReconnectInterval = 0 }},
		{"negative attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"zero tick", func(c *Config) { c.LiveRaceTick = 0 }},
		{"zero rate burst", func(c *Config) { c.SimulationRateBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
