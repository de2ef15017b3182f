// Package config manages spdm-responderd configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete spdm-responderd configuration.
type Config struct {
	Transport  TransportConfig  `koanf:"transport"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Admin      AdminConfig      `koanf:"admin"`
	Log        LogConfig        `koanf:"log"`
	Responder  ResponderConfig  `koanf:"responder"`
	Notify     NotifyConfig     `koanf:"notify"`
}

// TransportConfig holds the framed-connection listener configuration.
type TransportConfig struct {
	// Network is "tcp" or "unix".
	Network string `koanf:"network"`
	// Addr is the listen address (e.g., ":4488" or "/run/spdm-responder.sock").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// AdminConfig holds the read-only admin HTTP API configuration.
type AdminConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ResponderConfig holds responder-wide capability defaults.
type ResponderConfig struct {
	// ManifestPath points at the certificate/measurement provisioning
	// manifest (internal/provision.Manifest).
	ManifestPath string `koanf:"manifest_path"`

	// HeartbeatCapable, KeyExchangeCapable, and PSKCapable toggle the
	// corresponding SPDM capability bits this responder advertises.
	HeartbeatCapable   bool `koanf:"heartbeat_capable"`
	KeyExchangeCapable bool `koanf:"key_exchange_capable"`
	PSKCapable         bool `koanf:"psk_capable"`
	ChunkCapable       bool `koanf:"chunk_capable"`

	// CTExponent advertises the responder's worst-case response time as
	// 2^CTExponent microseconds.
	CTExponent uint8 `koanf:"ct_exponent"`
}

// NotifyConfig holds the webhook notifier configuration.
type NotifyConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Network: "tcp",
			Addr:    ":4488",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Admin: AdminConfig{
			Addr: ":9101",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Responder: ResponderConfig{
			HeartbeatCapable:   true,
			KeyExchangeCapable: false,
			PSKCapable:         false,
			ChunkCapable:       false,
			CTExponent:         12,
		},
		Notify: NotifyConfig{
			Enabled: false,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for spdm-responderd
// configuration. Variables are named SPDM_<section>_<key>, e.g.
// SPDM_TRANSPORT_ADDR.
const envPrefix = "SPDM_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (SPDM_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms SPDM_TRANSPORT_ADDR -> transport.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"transport.network":            defaults.Transport.Network,
		"transport.addr":               defaults.Transport.Addr,
		"metrics.addr":                 defaults.Metrics.Addr,
		"metrics.path":                 defaults.Metrics.Path,
		"admin.addr":                   defaults.Admin.Addr,
		"log.level":                    defaults.Log.Level,
		"log.format":                   defaults.Log.Format,
		"responder.heartbeat_capable":  defaults.Responder.HeartbeatCapable,
		"responder.key_exchange_capable": defaults.Responder.KeyExchangeCapable,
		"responder.psk_capable":        defaults.Responder.PSKCapable,
		"responder.chunk_capable":      defaults.Responder.ChunkCapable,
		"responder.ct_exponent":        defaults.Responder.CTExponent,
		"notify.enabled":               defaults.Notify.Enabled,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	ErrEmptyTransportAddr   = errors.New("transport.addr must not be empty")
	ErrInvalidTransportNet  = errors.New("transport.network must be tcp or unix")
	ErrEmptyManifestPath    = errors.New("responder.manifest_path must not be empty")
	ErrNotifyURLRequired    = errors.New("notify.url is required when notify.enabled is true")
)

var validTransportNetworks = map[string]bool{
	"tcp":  true,
	"unix": true,
}

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Transport.Addr == "" {
		return ErrEmptyTransportAddr
	}
	if !validTransportNetworks[cfg.Transport.Network] {
		return fmt.Errorf("transport.network %q: %w", cfg.Transport.Network, ErrInvalidTransportNet)
	}
	if cfg.Responder.ManifestPath == "" {
		return ErrEmptyManifestPath
	}
	if cfg.Notify.Enabled && cfg.Notify.URL == "" {
		return ErrNotifyURLRequired
	}
	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResponseTimeout computes the worst-case response time from CTExponent,
//: 2^CTExponent microseconds.
func ResponseTimeout(ctExponent uint8) time.Duration {
	return time.Duration(1<<ctExponent) * time.Microsecond
}
