// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/lingua-proxy/config.toml",
	"configs/config.toml",
}

// reservedRoutes are served by the proxy itself and cannot host metrics.
var reservedRoutes = []string{"/healthz", "/proxy/status"}

func init() {
	// Report validation failures by their TOML key rather than the Go field name.
	validation.ErrorTag = "toml"
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL string `kong:"name='upstream-url',help='Upstream origin base URL (overrides config).',env='UPSTREAM_URL'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds inbound HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RoutePrefix  string          `toml:"route_prefix"`
	DecodeBody   bool            `toml:"decode_body"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`

	// TrustedProxies lists CIDRs whose X-Forwarded-For is believed. Empty
	// means the client IP is always the connection's remote address.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds the upstream origin and connection settings.
type UpstreamConfig struct {
	BaseURL          string `toml:"base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	IdleConnections  int    `toml:"idle_connections"`
	ResponseMaxBytes int64  `toml:"response_max_bytes"`
	RelayRedirects   bool   `toml:"relay_redirects"` // return 3xx to the caller instead of following
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
// /etc/lingua-proxy/config.toml then configs/config.toml. If no file is found
// but the upstream URL was supplied on the command line or via UPSTREAM_URL,
// the proxy runs from defaults.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	case cli.UpstreamURL == "":
		return nil, fmt.Errorf("config: no config file found (searched %v) and no upstream URL given", configSearchPaths)
	}

	cfg.applyCLI(cli)
	cfg.normalize()

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
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Upstream.BaseURL = strings.TrimSpace(c.Upstream.BaseURL)
}

func (c *Config) validate() error {
	s := &c.Server
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&s.BodyMaxBytes, validation.Min(int64(0))),
		validation.Field(&s.RoutePrefix, validation.By(validateRoutePrefix)),
		validation.Field(&s.TrustedProxies, validation.Each(is.CIDR)),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	rl := &c.Server.RateLimit
	if err := validation.ValidateStruct(rl,
		validation.Field(&rl.RequestsPerSecond,
			validation.When(rl.Enabled, validation.Required, validation.Min(0.0).Exclusive()),
		),
	); err != nil {
		return fmt.Errorf("server.rate_limit: %w", err)
	}

	u := &c.Upstream
	if err := validation.ValidateStruct(u,
		validation.Field(&u.BaseURL, validation.Required, validation.By(validateUpstreamURL)),
		validation.Field(&u.TimeoutSeconds, validation.Min(0)),
		validation.Field(&u.IdleConnections, validation.Min(0)),
		validation.Field(&u.ResponseMaxBytes, validation.Min(int64(0))),
	); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	l := &c.Log
	if err := validation.ValidateStruct(l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "text")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	// Metrics path is only checked when metrics are served.
	if c.Metrics.Enabled {
		m := &c.Metrics
		if err := validation.ValidateStruct(m,
			validation.Field(&m.Path, validation.By(c.validateMetricsPath)),
		); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

func validateUpstreamURL(value any) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "must have a host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return validation.NewError("validation_origin_only", "must not carry a query or fragment")
	}
	return nil
}

func validateRoutePrefix(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if p[0] != '/' {
		return errors.New("must start with '/'")
	}
	if p == "/" || strings.HasSuffix(p, "/") {
		return errors.New("must not end with '/'")
	}
	if strings.ContainsAny(p, "*:?#") {
		return errors.New("must be a literal path")
	}
	return nil
}

func (c *Config) validateMetricsPath(value any) error {
	p, _ := value.(string)
	if p == "" {
		p = defaultMetricsPath
	}
	if p[0] != '/' {
		return errors.New("must start with '/'")
	}

	prefix := c.Server.RoutePrefix
	if prefix == "" {
		prefix = defaultRoutePrefix
	}
	for _, reserved := range append([]string{prefix}, reservedRoutes...) {
		if p == reserved || strings.HasPrefix(p, reserved+"/") {
			return fmt.Errorf("%q conflicts with reserved route %q", p, reserved)
		}
	}
	return nil
}

const (
	defaultRoutePrefix = "/api"
	defaultMetricsPath = "/metrics"
)

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Server.RoutePrefix == "" {
		c.Server.RoutePrefix = defaultRoutePrefix
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.ResponseMaxBytes == 0 {
		c.Upstream.ResponseMaxBytes = 10 * 1024 * 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
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
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
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
