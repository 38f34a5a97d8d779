// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minipress/minipress/internal/cache"
	"github.com/minipress/minipress/internal/config"
	"github.com/minipress/minipress/internal/daemon"
	"github.com/minipress/minipress/internal/health"
	mplog "github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/publish"
	"github.com/minipress/minipress/internal/session"
	"github.com/minipress/minipress/internal/storage/sqlite"
	"github.com/minipress/minipress/internal/telemetry"
	"github.com/minipress/minipress/internal/trending"
	"github.com/minipress/minipress/internal/web"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real configuration is loaded.
	mplog.Configure(mplog.Config{
		Level:   "info",
		Service: "minipress",
		Version: version,
	})
	logger := mplog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path precedence: --config, then ${MINIPRESS_DATA}/config.yaml
	// if it exists.
	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		dataDir := strings.TrimSpace(config.ParseString("MINIPRESS_DATA", "/var/lib/minipress"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectiveConfigPath = autoPath
		}
	}

	loader := config.NewLoader(effectiveConfigPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	mplog.Configure(mplog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version,
	})
	logger = mplog.WithComponent("main")

	if effectiveConfigPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	serverCfg, err := loader.ServerConfig()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.server_invalid").
			Msg("invalid server configuration")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("path", cfg.DataDir).
			Msg("cannot create data directory")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", serverCfg.ListenAddr).
		Msg("starting minipress")

	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	logger.Info().Msgf("→ Base URL: %s", cfg.BaseURL)
	logger.Info().Msgf("→ Cache: %s (ttl: %s)", cfg.CacheBackend, cfg.CacheTTL)
	logger.Info().Msgf("→ Publish interval: %s", cfg.PublishInterval)
	if cfg.AdminPasswordHash != "" {
		logger.Info().Msgf("→ Author: %s", cfg.AuthorName)
	} else {
		logger.Warn().Msg("→ Author login: NOT configured (HTML editing disabled). Set MINIPRESS_ADMIN_PASSWORD_HASH.")
	}
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured (API writes disabled). Set MINIPRESS_API_TOKEN.")
	}

	// Tracing first so later components can pick up the global provider.
	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "minipress",
		ServiceVersion: version,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}

	store, err := sqlite.Open(filepath.Join(cfg.DataDir, "posts.db"), sqlite.DefaultConfig())
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "store.open_failed").
			Msg("failed to open post store")
	}

	sessions, err := session.Open(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "sessions.open_failed").
			Msg("failed to open session store")
	}

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewPingChecker("sqlite", store.Ping))
	healthMgr.RegisterChecker(health.NewPingChecker("sessions", sessions.Ping))

	var siteCache cache.Cache
	switch cfg.CacheBackend {
	case config.CacheRedis:
		siteCache, err = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, mplog.WithComponent("cache"))
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "cache.connect_failed").
				Str("addr", cfg.RedisAddr).
				Msg("failed to connect to redis cache")
		}
	case config.CacheNone:
		siteCache = cache.NewNoOp()
	default:
		siteCache = cache.NewMemory(time.Minute)
	}

	var tracker trending.Tracker
	if cfg.TrendingEnabled && cfg.CacheBackend == config.CacheRedis {
		tracker, err = trending.NewRedis(trending.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, mplog.WithComponent("trending"))
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event", "trending.connect_failed").
				Msg("redis trending unavailable, falling back to in-memory tracker")
			tracker = trending.NewMemory()
		}
	} else {
		tracker = trending.NewMemory()
	}

	publisher := publish.New(store, publish.Config{
		DataDir:         cfg.DataDir,
		BaseURL:         cfg.BaseURL,
		SiteTitle:       cfg.SiteTitle,
		SiteDescription: cfg.SiteDescription,
		Interval:        cfg.PublishInterval,
	})
	healthMgr.RegisterChecker(health.NewPublishChecker(func() (time.Time, string) {
		st := publisher.Status()
		return st.LastBuild, st.LastError
	}))

	// Hot reload: fsnotify watcher plus SIGHUP.
	holder := config.NewHolder(cfg, config.NewLoader(effectiveConfigPath, version), effectiveConfigPath)
	if effectiveConfigPath != "" {
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "config.watch_failed").
				Msg("config file watching disabled")
		}
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := holder.Reload(ctx); err != nil {
					logger.Error().
						Err(err).
						Str("event", "config.reload_failed").
						Msg("SIGHUP reload failed, keeping previous configuration")
				} else {
					logger.Info().
						Str("event", "config.reloaded").
						Msg("configuration reloaded on SIGHUP")
				}
			}
		}
	}()

	srv, err := web.New(web.Options{
		Holder:    holder,
		Store:     store,
		Cache:     siteCache,
		Trending:  tracker,
		Sessions:  sessions,
		Publisher: publisher,
		Health:    healthMgr,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "web.init_failed").
			Msg("failed to build web server")
	}

	metricsAddr := ""
	if cfg.MetricsEnabled {
		metricsAddr = strings.TrimSpace(cfg.MetricsAddr)
		if metricsAddr == "" {
			metricsAddr = ":9090"
		}
	}

	mgr, err := daemon.NewManager(serverCfg, daemon.Deps{
		Logger:         logger,
		WebHandler:     srv.Handler(),
		MetricsAddr:    metricsAddr,
		MetricsHandler: promhttp.Handler(),
		Publisher:      publisher,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation_failed").
			Msg("failed to create daemon manager")
	}

	// LIFO: tracer goes down last, stores before it, watcher first.
	mgr.RegisterShutdownHook("tracer", tracer.Shutdown)
	mgr.RegisterShutdownHook("store", func(context.Context) error { return store.Close() })
	mgr.RegisterShutdownHook("sessions", func(context.Context) error { return sessions.Close() })
	mgr.RegisterShutdownHook("cache", func(context.Context) error { return siteCache.Close() })
	mgr.RegisterShutdownHook("trending", func(context.Context) error { return tracker.Close() })
	mgr.RegisterShutdownHook("config-watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
