// SPDX-License-Identifier: MIT

// Package ratelimit provides a token-bucket limiter for abuse-prone
// endpoints (login attempts, comment creation).
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "minipress",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type", "endpoint"},
)

// Config holds rate limiting configuration.
type Config struct {
	// Global limits across all clients
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int

	// Per-IP limits
	PerIPRate  rate.Limit
	PerIPBurst int

	// Cleanup interval for per-IP limiters
	CleanupInterval time.Duration
}

// LoginConfig returns limits tuned for login attempts.
func LoginConfig() Config {
	return Config{
		GlobalRate:      5,
		GlobalBurst:     10,
		PerIPRate:       rate.Every(2 * time.Second),
		PerIPBurst:      5,
		CleanupInterval: 5 * time.Minute,
	}
}

// CommentConfig returns limits tuned for comment creation.
func CommentConfig() Config {
	return Config{
		GlobalRate:      20,
		GlobalBurst:     40,
		PerIPRate:       1,
		PerIPBurst:      5,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter manages token buckets for one endpoint class.
type Limiter struct {
	endpoint string
	config   Config

	global *rate.Limiter
	perIP  map[string]*rate.Limiter
	mu     sync.Mutex

	lastCleanup time.Time
}

// New creates a limiter for the named endpoint.
func New(endpoint string, config Config) *Limiter {
	return &Limiter{
		endpoint:    endpoint,
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Allow checks whether a request from clientIP is within limits.
func (l *Limiter) Allow(clientIP string) bool {
	if !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("global", l.endpoint).Inc()
		return false
	}

	if !l.ipLimiter(clientIP).Allow() {
		rateLimitExceeded.WithLabelValues("per_ip", l.endpoint).Inc()
		return false
	}

	l.maybeCleanup()
	return true
}

func (l *Limiter) ipLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perIP[ip]
	if !exists {
		limiter = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = limiter
	}
	return limiter
}

func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	// Drop all per-IP buckets rather than tracking last-access times.
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}

// ClientIP extracts the originating client IP from the request, honoring
// X-Forwarded-For and X-Real-IP set by a reverse proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain "client, proxy1, proxy2"; take the first.
		first := xff
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
