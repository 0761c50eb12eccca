package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Detect    DetectConfig
	Proxy     ProxyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port       string `envconfig:"PORT" default:"3333"`
	Host       string `envconfig:"HOST" default:"0.0.0.0"`
	PlayerHTML string `envconfig:"PLAYER_HTML" default:"player.html"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// BrowserConfig holds browser engine configuration.
type BrowserConfig struct {
	Enabled      bool          `envconfig:"BROWSER_ENABLED" default:"true"`
	Bin          string        `envconfig:"BROWSER_BIN"`
	NoSandbox    bool          `envconfig:"BROWSER_NO_SANDBOX" default:"true"`
	MaxSessions  int           `envconfig:"BROWSER_MAX_SESSIONS" default:"4"`
	QueueTimeout time.Duration `envconfig:"BROWSER_QUEUE_TIMEOUT" default:"30s"`
	UserAgent    string        `envconfig:"BROWSER_USER_AGENT"`
	TriggersFile string        `envconfig:"BROWSER_TRIGGERS_FILE"`
}

// DetectConfig holds detection timing defaults and limits, in milliseconds.
type DetectConfig struct {
	TimeoutMs        int `envconfig:"DETECT_TIMEOUT_MS" default:"15000"`
	SettleMs         int `envconfig:"DETECT_SETTLE_MS" default:"5000"`
	TriggerTimeoutMs int `envconfig:"DETECT_TRIGGER_TIMEOUT_MS" default:"1000"`
	FallbackWaitMs   int `envconfig:"DETECT_FALLBACK_WAIT_MS" default:"2000"`
	MaxTimeoutMs     int `envconfig:"DETECT_MAX_TIMEOUT_MS" default:"60000"`
	MaxSettleMs      int `envconfig:"DETECT_MAX_SETTLE_MS" default:"30000"`
}

// Timeout returns the default page-load budget.
func (d DetectConfig) Timeout() time.Duration { return ms(d.TimeoutMs) }

// Settle returns the default post-load observation window.
func (d DetectConfig) Settle() time.Duration { return ms(d.SettleMs) }

// TriggerTimeout returns the budget of one play-control click.
func (d DetectConfig) TriggerTimeout() time.Duration { return ms(d.TriggerTimeoutMs) }

// FallbackWait returns the wait after a successful fallback click.
func (d DetectConfig) FallbackWait() time.Duration { return ms(d.FallbackWaitMs) }

// MaxTimeout returns the upper bound accepted for a page-load budget.
func (d DetectConfig) MaxTimeout() time.Duration { return ms(d.MaxTimeoutMs) }

// MaxSettle returns the upper bound accepted for a settle window.
func (d DetectConfig) MaxSettle() time.Duration { return ms(d.MaxSettleMs) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ProxyConfig holds stream relay configuration.
type ProxyConfig struct {
	AllowInsecure    bool          `envconfig:"PROXY_ALLOW_INSECURE" default:"false"`
	Timeout          time.Duration `envconfig:"PROXY_TIMEOUT" default:"30s"`
	RetryMax         int           `envconfig:"PROXY_RETRY_MAX" default:"2"`
	RequestsPerSec   float64       `envconfig:"PROXY_RPS" default:"50"`
	Burst            int           `envconfig:"PROXY_BURST" default:"100"`
	MaxPlaylistBytes int64         `envconfig:"PROXY_MAX_PLAYLIST_BYTES" default:"4194304"`
	UserAgent        string        `envconfig:"PROXY_USER_AGENT"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "3333",
			Host:       "0.0.0.0",
			PlayerHTML: "player.html",
		},
		Browser: BrowserConfig{
			Enabled:      true,
			NoSandbox:    true,
			MaxSessions:  4,
			QueueTimeout: 30 * time.Second,
		},
		Detect: DetectConfig{
			TimeoutMs:        15000,
			SettleMs:         5000,
			TriggerTimeoutMs: 1000,
			FallbackWaitMs:   2000,
			MaxTimeoutMs:     60000,
			MaxSettleMs:      30000,
		},
		Proxy: ProxyConfig{
			AllowInsecure:    false,
			Timeout:          30 * time.Second,
			RetryMax:         2,
			RequestsPerSec:   50,
			Burst:            100,
			MaxPlaylistBytes: 4 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
