// SPDX-License-Identifier: MIT

// Package publish rebuilds the site's published artifacts (RSS feed and
// sitemap) from the post store and writes them atomically into the data
// directory.
package publish

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/storage"
)

// FeedFile and SitemapFile are the artifact names inside the data directory.
const (
	FeedFile    = "feed.xml"
	SitemapFile = "sitemap.xml"
)

// maxFeedItems bounds the RSS feed to the newest entries.
const maxFeedItems = 50

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minipress_publish_builds_total",
		Help: "Total publish builds by result.",
	}, []string{"result"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "minipress_publish_duration_seconds",
		Help:    "Duration of publish builds.",
		Buckets: prometheus.DefBuckets,
	})

	publishedPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minipress_publish_posts",
		Help: "Number of posts in the last published feed.",
	})
)

// Lister is the subset of the store the publisher needs.
type Lister interface {
	ListPosts(ctx context.Context, opts storage.ListOptions) ([]post.Post, error)
}

// Config carries the site identity the artifacts embed.
type Config struct {
	DataDir         string
	BaseURL         string
	SiteTitle       string
	SiteDescription string
	Interval        time.Duration
}

// Status reports the outcome of the most recent build.
type Status struct {
	LastBuild time.Time     `json:"last_build"`
	LastError string        `json:"last_error,omitempty"`
	Posts     int           `json:"posts"`
	Duration  time.Duration `json:"duration"`
}

// Publisher rebuilds feed.xml and sitemap.xml on a timer and on demand.
type Publisher struct {
	store  Lister
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	status Status

	trigger  chan struct{}
	building atomic.Bool
}

// New creates a publisher. Run must be called to start the worker.
func New(store Lister, cfg Config) *Publisher {
	return &Publisher{
		store:   store,
		cfg:     cfg,
		logger:  log.WithComponent("publish"),
		trigger: make(chan struct{}, 1),
	}
}

// Run performs an initial build, then rebuilds on every tick of the
// configured interval and on every Trigger. It returns when ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Rebuild(ctx); err != nil {
		p.logger.Error().Err(err).Str("event", "publish.initial_failed").Msg("initial publish build failed")
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Str("event", "publish.stopped").Msg("publisher stopped")
			return nil
		case <-ticker.C:
			if err := p.Rebuild(ctx); err != nil {
				p.logger.Error().Err(err).Str("event", "publish.tick_failed").Msg("scheduled publish build failed")
			}
		case <-p.trigger:
			if err := p.Rebuild(ctx); err != nil {
				p.logger.Error().Err(err).Str("event", "publish.trigger_failed").Msg("triggered publish build failed")
			}
		}
	}
}

// Trigger requests an asynchronous rebuild. Requests arriving while one is
// already pending are coalesced; the return value reports whether this call
// scheduled a new build.
func (p *Publisher) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status returns a snapshot of the last build outcome.
func (p *Publisher) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Rebuild regenerates both artifacts synchronously. Concurrent calls are
// single-flight: a call that finds a build in progress returns nil.
func (p *Publisher) Rebuild(ctx context.Context) error {
	if !p.building.CompareAndSwap(false, true) {
		return nil
	}
	defer p.building.Store(false)

	start := time.Now()

	posts, err := p.store.ListPosts(ctx, storage.ListOptions{Limit: maxFeedItems})
	if err != nil {
		p.recordFailure(start, fmt.Errorf("list posts: %w", err))
		return fmt.Errorf("list posts: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.writeAtomic(filepath.Join(p.cfg.DataDir, FeedFile), func(w io.Writer) error {
			return encodeFeed(w, p.cfg, posts, start)
		})
	})
	g.Go(func() error {
		return p.writeAtomic(filepath.Join(p.cfg.DataDir, SitemapFile), func(w io.Writer) error {
			return encodeSitemap(w, p.cfg, posts)
		})
	})

	if err := g.Wait(); err != nil {
		p.recordFailure(start, err)
		return err
	}

	duration := time.Since(start)

	p.mu.Lock()
	p.status = Status{LastBuild: start, Posts: len(posts), Duration: duration}
	p.mu.Unlock()

	buildsTotal.WithLabelValues("success").Inc()
	buildDuration.Observe(duration.Seconds())
	publishedPosts.Set(float64(len(posts)))

	p.logger.Info().
		Str("event", "publish.rebuilt").
		Int("posts", len(posts)).
		Dur("duration", duration).
		Msg("published artifacts rebuilt")

	return nil
}

func (p *Publisher) recordFailure(start time.Time, err error) {
	p.mu.Lock()
	p.status.LastError = err.Error()
	p.status.Duration = time.Since(start)
	p.mu.Unlock()

	buildsTotal.WithLabelValues("error").Inc()
}

// writeAtomic writes through a pending file so readers never observe a
// partially written artifact.
func (p *Publisher) writeAtomic(path string, write func(io.Writer) error) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file %s: %w", path, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			p.logger.Debug().Err(err).Msg("cleanup pending file")
		}
	}()

	if err := write(pending); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
