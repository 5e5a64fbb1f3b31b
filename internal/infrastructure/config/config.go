package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	API          APIConfig
	Session      SessionConfig
	Notification NotificationConfig
	Storage      StorageConfig
	Logging      LogConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	MessagesFile string `envconfig:"MESSAGES_FILE"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// APIConfig holds the M.A.X. API connection settings.
type APIConfig struct {
	BaseURL         string        `envconfig:"MAX_API_URL" default:"http://localhost:8080"`
	GreetingTimeout time.Duration `envconfig:"MAX_GREETING_TIMEOUT" default:"10s"`
	ChatTimeout     time.Duration `envconfig:"MAX_CHAT_TIMEOUT" default:"60s"`
	RateLimit       float64       `envconfig:"MAX_API_RPS" default:"0"`
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	Timeout           time.Duration `envconfig:"SESSION_TIMEOUT" default:"30m"`
	BackgroundTimeout time.Duration `envconfig:"SESSION_BACKGROUND_TIMEOUT" default:"5m"`
	StorageKey        string        `envconfig:"SESSION_STORAGE_KEY" default:"maxChatSession"`
}

// NotificationConfig holds greeting banner delays.
type NotificationConfig struct {
	ShowDelay time.Duration `envconfig:"GREETING_SHOW_DELAY" default:"1s"`
	AutoHide  time.Duration `envconfig:"GREETING_AUTO_HIDE" default:"15s"`
	FadeOut   time.Duration `envconfig:"GREETING_FADE_OUT" default:"300ms"`
}

// StorageConfig selects the tab storage backend.
type StorageConfig struct {
	Driver   string        `envconfig:"STORAGE_DRIVER" default:"memory"`
	Dir      string        `envconfig:"STORAGE_DIR" default:"./data/tabs"`
	RedisURL string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	TTL      time.Duration `envconfig:"STORAGE_TTL" default:"24h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP rate limiting for the host API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig lists the origins allowed to call the host API.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
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
			Port: "8000",
			Host: "0.0.0.0",
		},
		API: APIConfig{
			BaseURL:         "http://localhost:8080",
			GreetingTimeout: 10 * time.Second,
			ChatTimeout:     60 * time.Second,
		},
		Session: SessionConfig{
			Timeout:           30 * time.Minute,
			BackgroundTimeout: 5 * time.Minute,
			StorageKey:        "maxChatSession",
		},
		Notification: NotificationConfig{
			ShowDelay: time.Second,
			AutoHide:  15 * time.Second,
			FadeOut:   300 * time.Millisecond,
		},
		Storage: StorageConfig{
			Driver:   "memory",
			Dir:      "./data/tabs",
			RedisURL: "redis://localhost:6379/0",
			TTL:      24 * time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("MAX_API_URL %q is not an absolute URL", c.API.BaseURL))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"MAX_GREETING_TIMEOUT", c.API.GreetingTimeout},
		{"MAX_CHAT_TIMEOUT", c.API.ChatTimeout},
		{"SESSION_TIMEOUT", c.Session.Timeout},
		{"SESSION_BACKGROUND_TIMEOUT", c.Session.BackgroundTimeout},
		{"GREETING_AUTO_HIDE", c.Notification.AutoHide},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.Notification.ShowDelay < 0 || c.Notification.FadeOut < 0 {
		errs = append(errs, errors.New("GREETING_SHOW_DELAY and GREETING_FADE_OUT must not be negative"))
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("MAX_API_RPS must not be negative, got %v", c.API.RateLimit))
	}
	if strings.TrimSpace(c.Session.StorageKey) == "" {
		errs = append(errs, errors.New("SESSION_STORAGE_KEY must not be empty"))
	}

	switch c.Storage.Driver {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q is not one of memory, file, redis", c.Storage.Driver))
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}
