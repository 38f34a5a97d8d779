// SPDX-License-Identifier: MIT

// Package daemon manages the process lifecycle: the web and metrics
// servers, the background publisher, and ordered graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minipress/minipress/internal/config"
	"github.com/minipress/minipress/internal/publish"
)

// ErrManagerNotStarted is returned by Shutdown before Start.
var ErrManagerNotStarted = errors.New("daemon: manager not started")

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Deps carries the manager's collaborators.
type Deps struct {
	Logger         zerolog.Logger
	WebHandler     http.Handler
	MetricsAddr    string       // empty disables the metrics listener
	MetricsHandler http.Handler // typically promhttp.Handler()
	Publisher      *publish.Publisher
}

// Validate checks that the required dependencies are present.
func (d Deps) Validate() error {
	if d.WebHandler == nil {
		return fmt.Errorf("web handler is required")
	}
	if d.MetricsAddr != "" && d.MetricsHandler == nil {
		return fmt.Errorf("metrics addr set but no metrics handler")
	}
	return nil
}

// Manager runs the daemon and coordinates shutdown.
type Manager interface {
	// Start starts all servers and blocks until ctx is done or a
	// server fails.
	Start(ctx context.Context) error

	// Shutdown gracefully stops everything.
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a cleanup function (LIFO order).
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	serverCfg config.ServerConfig
	deps      Deps

	webServer     *http.Server
	metricsServer *http.Server

	publishCancel context.CancelFunc
	publishDone   chan struct{}

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

// NewManager creates a daemon manager.
func NewManager(serverCfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	return &manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    deps.Logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Start starts the servers and the publisher worker, then blocks until
// ctx is cancelled or a server fails.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("listen", m.serverCfg.ListenAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("starting daemon")

	errChan := make(chan error, 2)

	if m.deps.Publisher != nil {
		m.startPublisher()
	}
	if m.deps.MetricsAddr != "" {
		m.startMetricsServer(errChan)
	}
	m.startWebServer(errChan)

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("server error, initiating shutdown")
		// Detached but bounded: shutdown must complete even though the
		// parent context may already be cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) startPublisher() {
	// The worker outlives the request context and is stopped by its own
	// cancel func during shutdown.
	pubCtx, cancel := context.WithCancel(context.Background())
	m.publishCancel = cancel
	m.publishDone = make(chan struct{})

	go func() {
		defer close(m.publishDone)
		if err := m.deps.Publisher.Run(pubCtx); err != nil {
			m.logger.Error().Err(err).Str("event", "daemon.publisher_failed").Msg("publisher worker failed")
		}
	}()
}

func (m *manager) startWebServer(errChan chan<- error) {
	m.webServer = &http.Server{
		Addr:              m.serverCfg.ListenAddr,
		Handler:           m.deps.WebHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
		MaxHeaderBytes:    m.serverCfg.MaxHeaderBytes,
	}

	go func() {
		m.logger.Info().Str("addr", m.serverCfg.ListenAddr).Msg("web server listening")
		if err := m.webServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Str("event", "daemon.web_server_failed").Msg("web server failed")
			errChan <- fmt.Errorf("web server: %w", err)
		}
	}()
}

func (m *manager) startMetricsServer(errChan chan<- error) {
	m.metricsServer = &http.Server{
		Addr:              m.deps.MetricsAddr,
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
	}

	go func() {
		m.logger.Info().Str("addr", m.deps.MetricsAddr).Msg("metrics server listening")
		if err := m.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Str("event", "daemon.metrics_server_failed").Msg("metrics server failed")
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Shutdown stops the servers, the publisher, and runs the hooks in LIFO
// order within a bounded window.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if m.webServer != nil {
		if err := m.webServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("web server shutdown: %w", err))
		}
	}
	if m.metricsServer != nil {
		if err := m.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if m.publishCancel != nil {
		m.publishCancel()
		select {
		case <-m.publishDone:
		case <-shutdownCtx.Done():
			errs = append(errs, fmt.Errorf("publisher did not stop in time"))
		}
	}

	for i := len(m.shutdownHooks) - 1; i >= 0; i-- {
		hook := m.shutdownHooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
		} else {
			m.logger.Debug().
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook completed")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Msg("daemon stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function (LIFO order).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}
