package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Realtime transport. An empty URL keeps the dashboard in mock mode.
	RealtimeURL         string        `mapstructure:"REALTIME_URL"`
	RealtimeChannel     string        `mapstructure:"REALTIME_CHANNEL"`
	RealtimeToken       string        `mapstructure:"REALTIME_TOKEN"`
	RealtimeTokenSecret string        `mapstructure:"REALTIME_TOKEN_SECRET"`
	RealtimeTokenTTL    time.Duration `mapstructure:"REALTIME_TOKEN_TTL"`
	RealtimeClientName  string        `mapstructure:"REALTIME_CLIENT_NAME"`
	ConnectTimeout      time.Duration `mapstructure:"CONNECT_TIMEOUT"`

	// Reconnection
	ReconnectInterval    time.Duration `mapstructure:"RECONNECT_INTERVAL"`
	MaxReconnectAttempts int           `mapstructure:"MAX_RECONNECT_ATTEMPTS"`

	// Result cache
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	CacheSweepSchedule string        `mapstructure:"CACHE_SWEEP_SCHEDULE"`
	RedisURL           string        `mapstructure:"REDIS_URL"`

	// Simulation façade
	MockDelay            time.Duration `mapstructure:"MOCK_DELAY"`
	ResponseTimeout      time.Duration `mapstructure:"RESPONSE_TIMEOUT"`
	LiveRaceStartTimeout time.Duration `mapstructure:"LIVE_RACE_START_TIMEOUT"`
	LiveRaceTick         time.Duration `mapstructure:"LIVE_RACE_TICK"`
	LiveRaceStartDelay   time.Duration `mapstructure:"LIVE_RACE_START_DELAY"`

	// Gateway throttling
	SimulationRateLimit float64 `mapstructure:"SIMULATION_RATE_LIMIT"`
	SimulationRateBurst int     `mapstructure:"SIMULATION_RATE_BURST"`
}

func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if len(paths) == 0 {
		paths = []string{".", ".."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// Read from environment
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := v.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")

	v.SetDefault("REALTIME_URL", "")
	v.SetDefault("REALTIME_CHANNEL", "athletics")
	v.SetDefault("REALTIME_TOKEN", "")
	v.SetDefault("REALTIME_TOKEN_SECRET", "")
	v.SetDefault("REALTIME_TOKEN_TTL", "1h")
	v.SetDefault("REALTIME_CLIENT_NAME", "athletics-dashboard")
	v.SetDefault("CONNECT_TIMEOUT", "10s")

	v.SetDefault("RECONNECT_INTERVAL", "3s")
	v.SetDefault("MAX_RECONNECT_ATTEMPTS", 5)

	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_SWEEP_SCHEDULE", "@every 1m")
	v.SetDefault("REDIS_URL", "") // memory-only cache when empty

	v.SetDefault("MOCK_DELAY", "500ms")
	v.SetDefault("RESPONSE_TIMEOUT", "30s")
	v.SetDefault("LIVE_RACE_START_TIMEOUT", "10s")
	v.SetDefault("LIVE_RACE_TICK", "100ms")
	v.SetDefault("LIVE_RACE_START_DELAY", "1s")

	v.SetDefault("SIMULATION_RATE_LIMIT", 2.0) // requests per second
	v.SetDefault("SIMULATION_RATE_BURST", 5)
}

// Validate checks that all configuration values are usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.RealtimeURL != "" && !strings.HasPrefix(c.RealtimeURL, "ws://") && !strings.HasPrefix(c.RealtimeURL, "wss://") {
		return fmt.Errorf("REALTIME_URL must use ws:// or wss://")
	}
	if c.RealtimeChannel == "" {
		return fmt.Errorf("REALTIME_CHANNEL is required")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("RECONNECT_INTERVAL must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.ResponseTimeout <= 0 || c.LiveRaceStartTimeout <= 0 {
		return fmt.Errorf("response timeouts must be positive")
	}
	if c.LiveRaceTick <= 0 {
		return fmt.Errorf("LIVE_RACE_TICK must be positive")
	}
	if c.LiveRaceStartDelay < 0 || c.MockDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.SimulationRateLimit <= 0 || c.SimulationRateBurst < 1 {
		return fmt.Errorf("SIMULATION_RATE_LIMIT and SIMULATION_RATE_BURST must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
