// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
	file       *FileConfig
}

// NewLoader creates a configuration loader. configPath may be empty for
// ENV-only configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load resolves configuration in strict order: defaults, then the YAML
// file (strictly parsed), then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		l.file = fileCfg
		if err := mergeFile(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	mergeEnv(&cfg)

	// DataDir must be absolute to keep the file server's containment
	// checks and the atomic publish path unambiguous.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ServerConfig resolves HTTP server settings. Call after Load so the
// YAML server block participates in precedence.
func (l *Loader) ServerConfig() (ServerConfig, error) {
	return ParseServerConfig(l.file)
}

func defaults() AppConfig {
	return AppConfig{
		DataDir:         "/var/lib/minipress",
		BaseURL:         "http://localhost:8080",
		SiteTitle:       "minipress",
		SiteDescription: "a small self-hosted publishing server",
		LogLevel:        "info",
		LogService:      "minipress",
		AuthorName:      "author",
		SessionTTL:      24 * time.Hour,
		CacheBackend:    CacheMemory,
		CacheTTL:        5 * time.Minute,
		TrendingEnabled: true,
		PublishInterval: 15 * time.Minute,
		MetricsEnabled:  false,
		MetricsAddr:     ":9090",
		TracingExporter: "http",
	}
}

// loadFile loads configuration from a YAML file with strict parsing:
// unknown fields are fatal to catch misconfiguration early.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Reject multiple documents or trailing content.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, f *FileConfig) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string, field string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", field, err)
		}
		*dst = d
		return nil
	}

	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.BaseURL, f.BaseURL)
	setString(&cfg.SiteTitle, f.SiteTitle)
	setString(&cfg.SiteDescription, f.SiteDescription)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.AuthorName, f.AuthorName)
	setString(&cfg.AdminPasswordHash, f.AdminPasswordHash)
	setString(&cfg.APIToken, f.APIToken)

	if err := setDuration(&cfg.SessionTTL, f.SessionTTL, "sessionTTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PublishInterval, f.PublishInterval, "publishInterval"); err != nil {
		return err
	}

	if f.Cache != nil {
		if f.Cache.Backend != nil {
			cfg.CacheBackend = CacheBackend(*f.Cache.Backend)
		}
		if err := setDuration(&cfg.CacheTTL, f.Cache.TTL, "cache.ttl"); err != nil {
			return err
		}
	}

	if f.Redis != nil {
		setString(&cfg.RedisAddr, f.Redis.Addr)
		setString(&cfg.RedisPassword, f.Redis.Password)
		if f.Redis.DB != nil {
			cfg.RedisDB = *f.Redis.DB
		}
	}

	if f.TrendingEnabled != nil {
		cfg.TrendingEnabled = *f.TrendingEnabled
	}

	if f.Metrics != nil {
		if f.Metrics.Enabled != nil {
			cfg.MetricsEnabled = *f.Metrics.Enabled
		}
		setString(&cfg.MetricsAddr, f.Metrics.Addr)
	}

	if len(f.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string(nil), f.AllowedOrigins...)
	}

	if f.Tracing != nil {
		if f.Tracing.Enabled != nil {
			cfg.TracingEnabled = *f.Tracing.Enabled
		}
		setString(&cfg.TracingExporter, f.Tracing.Exporter)
		setString(&cfg.TracingEndpoint, f.Tracing.Endpoint)
	}

	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString("MINIPRESS_DATA", cfg.DataDir)
	cfg.BaseURL = ParseString("MINIPRESS_BASE_URL", cfg.BaseURL)
	cfg.SiteTitle = ParseString("MINIPRESS_SITE_TITLE", cfg.SiteTitle)
	cfg.SiteDescription = ParseString("MINIPRESS_SITE_DESCRIPTION", cfg.SiteDescription)
	cfg.LogLevel = ParseString("MINIPRESS_LOG_LEVEL", cfg.LogLevel)
	cfg.AuthorName = ParseString("MINIPRESS_AUTHOR", cfg.AuthorName)
	cfg.AdminPasswordHash = ParseString("MINIPRESS_ADMIN_PASSWORD_HASH", cfg.AdminPasswordHash)
	cfg.APIToken = ParseString("MINIPRESS_API_TOKEN", cfg.APIToken)
	cfg.SessionTTL = ParseDuration("MINIPRESS_SESSION_TTL", cfg.SessionTTL)
	cfg.CacheBackend = CacheBackend(ParseString("MINIPRESS_CACHE_BACKEND", string(cfg.CacheBackend)))
	cfg.CacheTTL = ParseDuration("MINIPRESS_CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = ParseString("MINIPRESS_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("MINIPRESS_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("MINIPRESS_REDIS_DB", cfg.RedisDB)
	cfg.TrendingEnabled = ParseBool("MINIPRESS_TRENDING_ENABLED", cfg.TrendingEnabled)
	cfg.PublishInterval = ParseDuration("MINIPRESS_PUBLISH_INTERVAL", cfg.PublishInterval)
	cfg.MetricsEnabled = ParseBool("MINIPRESS_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = ParseString("MINIPRESS_METRICS_LISTEN", cfg.MetricsAddr)
	cfg.TracingEnabled = ParseBool("MINIPRESS_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = ParseString("MINIPRESS_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.TracingEndpoint = ParseString("MINIPRESS_TRACING_ENDPOINT", cfg.TracingEndpoint)

	if origins := ParseString("MINIPRESS_ALLOWED_ORIGINS", ""); origins != "" {
		parts := strings.Split(origins, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		cfg.AllowedOrigins = out
	}
}

// Validate checks a resolved configuration for consistency.
func Validate(cfg AppConfig) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data dir is empty")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL %q is missing host", cfg.BaseURL)
	}

	switch cfg.CacheBackend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("unknown cache backend %q (memory, redis, none)", cfg.CacheBackend)
	}

	if cfg.CacheBackend == CacheRedis && cfg.RedisAddr == "" {
		return fmt.Errorf("cache backend is redis but no redis addr configured")
	}

	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %v", cfg.SessionTTL)
	}
	if cfg.PublishInterval < time.Minute {
		return fmt.Errorf("publish interval must be at least 1m, got %v", cfg.PublishInterval)
	}

	if cfg.TracingEnabled {
		if cfg.TracingExporter != "http" && cfg.TracingExporter != "grpc" {
			return fmt.Errorf("unsupported tracing exporter %q (http, grpc)", cfg.TracingExporter)
		}
		if cfg.TracingEndpoint == "" {
			return fmt.Errorf("tracing enabled but no endpoint configured")
		}
	}

	return nil
}
