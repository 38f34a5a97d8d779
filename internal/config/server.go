// SPDX-License-Identifier: MIT

package config

import (
	"time"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g. ":8080")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out response writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes bounds request header parsing
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

const (
	defaultListenAddr      = ":8080"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 15 * time.Second
)

// ParseServerConfig resolves server configuration from the environment,
// layered over YAML-provided values where the environment is silent.
func ParseServerConfig(f *FileConfig) (ServerConfig, error) {
	base := ServerConfig{
		ListenAddr:      defaultListenAddr,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		IdleTimeout:     defaultIdleTimeout,
		MaxHeaderBytes:  defaultMaxHeaderBytes,
		ShutdownTimeout: defaultShutdownTimeout,
	}

	if f != nil && f.Server != nil {
		if f.Server.ListenAddr != nil {
			base.ListenAddr = *f.Server.ListenAddr
		}
		for _, d := range []struct {
			src   *string
			dst   *time.Duration
			field string
		}{
			{f.Server.ReadTimeout, &base.ReadTimeout, "server.readTimeout"},
			{f.Server.WriteTimeout, &base.WriteTimeout, "server.writeTimeout"},
			{f.Server.IdleTimeout, &base.IdleTimeout, "server.idleTimeout"},
			{f.Server.ShutdownTimeout, &base.ShutdownTimeout, "server.shutdownTimeout"},
		} {
			if d.src == nil {
				continue
			}
			parsed, err := time.ParseDuration(*d.src)
			if err != nil {
				return base, err
			}
			*d.dst = parsed
		}
	}

	out := ServerConfig{
		ListenAddr:      ParseString("MINIPRESS_LISTEN", base.ListenAddr),
		ReadTimeout:     ParseDuration("MINIPRESS_SERVER_READ_TIMEOUT", base.ReadTimeout),
		WriteTimeout:    ParseDuration("MINIPRESS_SERVER_WRITE_TIMEOUT", base.WriteTimeout),
		IdleTimeout:     ParseDuration("MINIPRESS_SERVER_IDLE_TIMEOUT", base.IdleTimeout),
		MaxHeaderBytes:  ParseInt("MINIPRESS_SERVER_MAX_HEADER_BYTES", base.MaxHeaderBytes),
		ShutdownTimeout: ParseDuration("MINIPRESS_SERVER_SHUTDOWN_TIMEOUT", base.ShutdownTimeout),
	}

	if out.MaxHeaderBytes <= 0 {
		out.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if out.ShutdownTimeout < 3*time.Second {
		out.ShutdownTimeout = 3 * time.Second
	}

	return out, nil
}
