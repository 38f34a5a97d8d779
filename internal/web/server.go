// SPDX-License-Identifier: MIT

// Package web is the HTTP layer of minipress: the server-rendered HTML
// site, the JSON API, and the operational probe endpoints.
package web

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	apispec "github.com/minipress/minipress/api"
	"github.com/minipress/minipress/internal/cache"
	"github.com/minipress/minipress/internal/config"
	"github.com/minipress/minipress/internal/health"
	"github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/publish"
	"github.com/minipress/minipress/internal/ratelimit"
	"github.com/minipress/minipress/internal/session"
	"github.com/minipress/minipress/internal/storage"
	"github.com/minipress/minipress/internal/trending"
	"github.com/minipress/minipress/internal/view"
	"github.com/minipress/minipress/internal/web/middleware"
)

// Options wires the server's dependencies.
type Options struct {
	Holder    *config.Holder
	Store     storage.Store
	Cache     cache.Cache
	Trending  trending.Tracker
	Sessions  *session.Store
	Publisher *publish.Publisher
	Health    *health.Manager
}

// Server handles all HTTP traffic.
type Server struct {
	holder    *config.Holder
	store     storage.Store
	cache     cache.Cache
	trending  trending.Tracker
	sessions  *session.Store
	publisher *publish.Publisher
	health    *health.Manager
	renderer  *view.Renderer
	logger    zerolog.Logger

	loginLimiter   *ratelimit.Limiter
	commentLimiter *ratelimit.Limiter

	specJSON []byte

	router *chi.Mux
}

// New builds the server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Holder == nil || opts.Store == nil {
		return nil, fmt.Errorf("web: holder and store are required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNoOp()
	}
	if opts.Trending == nil {
		opts.Trending = trending.NewMemory()
	}

	renderer, err := view.New()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	doc, err := openapi3.NewLoader().LoadFromData(apispec.Spec)
	if err != nil {
		return nil, fmt.Errorf("web: load openapi spec: %w", err)
	}
	specJSON, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("web: marshal openapi spec: %w", err)
	}

	s := &Server{
		holder:         opts.Holder,
		store:          opts.Store,
		cache:          opts.Cache,
		trending:       opts.Trending,
		sessions:       opts.Sessions,
		publisher:      opts.Publisher,
		health:         opts.Health,
		renderer:       renderer,
		logger:         log.WithComponent("web"),
		loginLimiter:   ratelimit.New("login", ratelimit.LoginConfig()),
		commentLimiter: ratelimit.New("comments", ratelimit.CommentConfig()),
		specJSON:       specJSON,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) cfg() config.AppConfig { return s.holder.Get() }

func (s *Server) routes() *chi.Mux {
	cfg := s.cfg()

	tracingService := ""
	if cfg.TracingEnabled {
		tracingService = "minipress"
	}

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		EnableRateLimit:       true,
		RateLimitPerMinute:    600,
	})

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Operational probes.
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}

	// HTML site.
	r.Get("/", s.handleHome)
	r.Get("/posts", s.handleIndex)
	r.Get("/posts/new", s.requireSession(s.handleNewForm))
	r.Post("/posts", s.requireSession(s.handleCreate))
	r.Get("/posts/{id}", s.handleShow)
	r.Get("/posts/{id}/edit", s.requireSession(s.handleEditForm))
	r.Post("/posts/{id}", s.requireSession(s.handleUpdate))
	r.Post("/posts/{id}/delete", s.requireSession(s.handleDelete))
	r.Post("/posts/{id}/comments", s.handleAddComment)

	r.Get("/login", s.handleLoginForm)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	// Published artifacts and media, from the data directory.
	r.Get("/feed.xml", s.handleArtifact(publish.FeedFile, "application/rss+xml; charset=utf-8"))
	r.Get("/sitemap.xml", s.handleArtifact(publish.SitemapFile, "application/xml; charset=utf-8"))
	r.Handle("/media/*", http.StripPrefix("/media", s.secureFileServer()))

	// JSON API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/posts", s.apiListPosts)
		r.Post("/posts", s.requireToken(s.apiCreatePost))
		r.Get("/posts/{id}", s.apiGetPost)
		r.Put("/posts/{id}", s.requireToken(s.apiUpdatePost))
		r.Delete("/posts/{id}", s.requireToken(s.apiDeletePost))
		r.Get("/posts/{id}/comments", s.apiListComments)
		r.Post("/posts/{id}/comments", s.apiAddComment)
		r.Get("/trending", s.apiTrending)
		r.Get("/status", s.apiStatus)
		r.Post("/rebuild", s.requireToken(s.apiRebuild))
		r.Get("/openapi.json", s.apiOpenAPI)
	})

	return r
}
