package config

import (
	"errors"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	// Identity tokens and browser sessions.
	JWTSecret      string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer      string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience    string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL       time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	AuthCookieName string        `mapstructure:"auth_cookie_name" yaml:"auth_cookie_name"`
	SessionSecret  string        `mapstructure:"session_secret" yaml:"session_secret"`

	// Signaling.
	DefaultRoom       string        `mapstructure:"default_room" yaml:"default_room"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendBuffer        int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RelayUnknownTypes bool          `mapstructure:"relay_unknown_types" yaml:"relay_unknown_types"`

	// Participation tracking.
	StoreTimeout time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	TrackerQueue int           `mapstructure:"tracker_queue" yaml:"tracker_queue"`

	MetricsRoute string `mapstructure:"metrics_route" yaml:"metrics_route"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "wiremeet.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "wiremeet",
		JWTAudience:       "wiremeet",
		TokenTTL:          24 * time.Hour,
		AuthCookieName:    "wiremeet_token",
		SessionSecret:     "change-me-too",
		DefaultRoom:       "default",
		MaxMessageBytes:   64 << 10,
		SendBuffer:        64,
		PingInterval:      30 * time.Second,
		MessagesPerMinute: 0,
		AllowedOrigins:    nil,
		RelayUnknownTypes: true,
		StoreTimeout:      5 * time.Second,
		TrackerQueue:      256,
		MetricsRoute:      "/metrics",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used for command line overrides, so only flag-backed fields are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate reports configuration that the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session_secret is required"))
	}
	if c.DefaultRoom == "" {
		errs = append(errs, errors.New("default_room must not be empty"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.TrackerQueue <= 0 {
		errs = append(errs, errors.New("tracker_queue must be positive"))
	}
	return errors.Join(errs...)
}
