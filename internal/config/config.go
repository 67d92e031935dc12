// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/portfolio-api/config.toml",
	"configs/config.toml",
}

// placeholderKey is the store key shipped in the example config.
const placeholderKey = "YOUR_STORE_KEY_HERE"

// apiRoutes are path prefixes served by the gateway; metrics.path must not shadow them.
var apiRoutes = []string{"/rahmadip", "/tools", "/space", "/projects", "/message", "/healthz", "/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	StoreURL string `kong:"help='Backend store project URL (overrides config).',env='STORE_URL'"`
	StoreKey string `kong:"help='Backend store access key (overrides config).',env='STORE_KEY'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Access  AccessConfig  `toml:"access"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	Banner       string          `toml:"banner"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// StoreConfig holds the backend store connection settings.
type StoreConfig struct {
	URL             string `toml:"url"`
	Key             string `toml:"key"`
	RestPath        string `toml:"rest_path"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// AccessConfig lists the origins trusted by the access guard.
type AccessConfig struct {
	Origin       string   `toml:"origin"`
	ExtraOrigins []string `toml:"extra_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/portfolio-api/config.toml then configs/config.toml. If neither exists
// the configuration comes from flags and environment only.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.StoreURL != "" {
		c.Store.URL = cli.StoreURL
	}
	if cli.StoreKey != "" {
		c.Store.Key = cli.StoreKey
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Store.Key == placeholderKey {
		return fmt.Errorf("store.key contains placeholder value; set the project's anon key")
	}

	// Store URL: required, HTTPS unless pointing at a loopback host.
	if c.Store.URL == "" {
		return fmt.Errorf("store.url is required")
	}
	u, err := url.Parse(c.Store.URL)
	if err != nil {
		return fmt.Errorf("store.url is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !isLoopback(u.Hostname()) {
			return fmt.Errorf("store.url must use HTTPS for non-local hosts; got %q", c.Store.URL)
		}
	default:
		return fmt.Errorf("store.url must be an http(s) URL; got %q", c.Store.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("store.url has no host; got %q", c.Store.URL)
	}
	if p := c.Store.RestPath; p != "" && p[0] != '/' {
		return fmt.Errorf("store.rest_path must start with '/'; got %q", p)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Store.TimeoutSeconds < 0 {
		return fmt.Errorf("store.timeout_seconds must be non-negative; got %d", c.Store.TimeoutSeconds)
	}
	if c.Store.IdleConnections < 0 {
		return fmt.Errorf("store.idle_connections must be non-negative; got %d", c.Store.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Trusted origins.
	if c.Access.Origin != "" {
		if err := validateOrigin(c.Access.Origin); err != nil {
			return fmt.Errorf("access.origin: %w", err)
		}
	}
	for i, o := range c.Access.ExtraOrigins {
		if err := validateOrigin(o); err != nil {
			return fmt.Errorf("access.extra_origins[%d]: %w", i, err)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q conflicts with the banner route", p)
		}
		for _, reserved := range apiRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// validateOrigin checks that s is a bare scheme://host[:port] origin.
func validateOrigin(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin %q must use http or https", s)
	}
	if u.Host == "" {
		return fmt.Errorf("origin %q has no host", s)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("origin %q must not contain a path, query or fragment", s)
	}
	if strings.HasSuffix(s, "/") {
		return fmt.Errorf("origin %q must not end with '/'", s)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Server.Banner == "" {
		c.Server.Banner = "Official rahmadip.github.io API"
	}
	c.Store.URL = strings.TrimRight(c.Store.URL, "/")
	if c.Store.RestPath == "" {
		c.Store.RestPath = "/rest/v1"
	}
	c.Store.RestPath = strings.TrimRight(c.Store.RestPath, "/")
	if c.Store.TimeoutSeconds == 0 {
		c.Store.TimeoutSeconds = 30
	}
	if c.Store.IdleConnections == 0 {
		c.Store.IdleConnections = 100
	}
	if c.Access.Origin == "" {
		c.Access.Origin = "https://rahmadip.github.io"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// LocalOrigin is the development origin for a browser served from this host.
func (c *ServerConfig) LocalOrigin() string {
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
