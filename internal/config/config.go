// SPDX-License-Identifier: MIT

// Package config loads and validates minipress configuration with the
// precedence ENV > YAML file > defaults.
package config

import "time"

// CacheBackend selects the cache implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheNone   CacheBackend = "none"
)

// AppConfig is the fully resolved application configuration.
type AppConfig struct {
	// Version is stamped from the binary at load time.
	Version string

	// DataDir holds the SQLite database, the Badger session store, the
	// published feed/sitemap artifacts, and uploaded media.
	DataDir string

	// BaseURL is the canonical public URL of the site, used in the feed
	// and sitemap (e.g. "https://blog.example.com").
	BaseURL string

	// SiteTitle and SiteDescription appear in the layout and the feed.
	SiteTitle       string
	SiteDescription string

	// LogLevel and LogService configure the global logger.
	LogLevel   string
	LogService string

	// AuthorName is the display name of the single configured author.
	AuthorName string
	// AdminPasswordHash is the bcrypt hash checked on login. Empty
	// disables HTML login entirely.
	AdminPasswordHash string
	// APIToken authorizes JSON API writes via Bearer token. Empty
	// disables API writes.
	APIToken string

	// SessionTTL bounds author login sessions.
	SessionTTL time.Duration

	// Cache settings.
	CacheBackend CacheBackend
	CacheTTL     time.Duration

	// Redis connection, shared by the redis cache backend and the
	// trending tracker.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TrendingEnabled toggles view tracking. Without Redis the tracker
	// falls back to an in-memory implementation.
	TrendingEnabled bool

	// PublishInterval is the cadence of background feed/sitemap rebuilds.
	PublishInterval time.Duration

	// MetricsEnabled exposes Prometheus metrics on MetricsAddr.
	MetricsEnabled bool
	MetricsAddr    string

	// AllowedOrigins is the CORS allow-list for the JSON API.
	AllowedOrigins []string

	// TracingEnabled turns on OTLP trace export.
	TracingEnabled  bool
	TracingExporter string // "http" or "grpc"
	TracingEndpoint string
}

// FileConfig is the YAML on-disk shape. Pointers distinguish "absent"
// from zero values during merging.
type FileConfig struct {
	DataDir         *string `yaml:"dataDir,omitempty"`
	BaseURL         *string `yaml:"baseURL,omitempty"`
	SiteTitle       *string `yaml:"siteTitle,omitempty"`
	SiteDescription *string `yaml:"siteDescription,omitempty"`

	LogLevel *string `yaml:"logLevel,omitempty"`

	AuthorName        *string `yaml:"authorName,omitempty"`
	AdminPasswordHash *string `yaml:"adminPasswordHash,omitempty"`
	APIToken          *string `yaml:"apiToken,omitempty"`

	SessionTTL *string `yaml:"sessionTTL,omitempty"`

	Cache *struct {
		Backend *string `yaml:"backend,omitempty"`
		TTL     *string `yaml:"ttl,omitempty"`
	} `yaml:"cache,omitempty"`

	Redis *struct {
		Addr     *string `yaml:"addr,omitempty"`
		Password *string `yaml:"password,omitempty"`
		DB       *int    `yaml:"db,omitempty"`
	} `yaml:"redis,omitempty"`

	TrendingEnabled *bool `yaml:"trendingEnabled,omitempty"`

	PublishInterval *string `yaml:"publishInterval,omitempty"`

	Metrics *struct {
		Enabled *bool   `yaml:"enabled,omitempty"`
		Addr    *string `yaml:"addr,omitempty"`
	} `yaml:"metrics,omitempty"`

	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`

	Tracing *struct {
		Enabled  *bool   `yaml:"enabled,omitempty"`
		Exporter *string `yaml:"exporter,omitempty"`
		Endpoint *string `yaml:"endpoint,omitempty"`
	} `yaml:"tracing,omitempty"`

	Server *struct {
		ListenAddr      *string `yaml:"listenAddr,omitempty"`
		ReadTimeout     *string `yaml:"readTimeout,omitempty"`
		WriteTimeout    *string `yaml:"writeTimeout,omitempty"`
		IdleTimeout     *string `yaml:"idleTimeout,omitempty"`
		ShutdownTimeout *string `yaml:"shutdownTimeout,omitempty"`
	} `yaml:"server,omitempty"`
}
