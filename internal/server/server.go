// Package server exposes the resolution engine over HTTP.
//
// The API is JSON in, JSON out:
//
//	POST /api/resolve  resolve a root descriptor into a closure
//	POST /api/plan     resolve and return the fetch plan
//	GET  /api/runs     list recent resolution runs
//	GET  /healthz      liveness probe
//
// Descriptor caching degrades gracefully: with RECIPEDEPS_REDIS_ADDR set the
// server shares a Redis cache, otherwise each fetch hits the upstream host.
// Run history works the same way with RECIPEDEPS_MONGO_URI.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/luqui/recipe-engine/pkg/cache"
	"github.com/luqui/recipe-engine/pkg/history"
	"github.com/luqui/recipe-engine/pkg/resolve"
	"github.com/luqui/recipe-engine/pkg/source"
)

const (
	defaultAddr     = ":8080"
	descriptorTTL   = 15 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Config holds the server configuration.
type Config struct {
	Addr      string // listen address (default ":8080")
	RedisAddr string // optional Redis address for the shared descriptor cache
	MongoURI  string // optional MongoDB URI for run history
}

// Server wires the resolution engine, descriptor cache and run history
// behind an HTTP API.
type Server struct {
	addr    string
	src     source.Source
	engine  *resolve.Engine
	backend cache.Cache
	runs    history.Store
	logger  *log.Logger
}

// New constructs a Server from cfg. Optional backends that fail to connect
// disable their feature with a warning instead of failing startup.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Server, error) {
	backend := cache.NewNullCache()
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warnf("Descriptor cache disabled: %v", err)
		} else {
			backend = c
			logger.Infof("Descriptor cache: redis at %s", cfg.RedisAddr)
		}
	}

	var runs history.Store = history.NullStore{}
	if cfg.MongoURI != "" {
		s, err := history.NewMongoStore(ctx, cfg.MongoURI, "")
		if err != nil {
			logger.Warnf("Run history disabled: %v", err)
		} else {
			runs = s
			logger.Infof("Run history: mongodb")
		}
	}

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	src := source.NewRemote(backend, descriptorTTL, nil)
	return &Server{
		addr:    addr,
		src:     src,
		engine:  resolve.New(src),
		backend: backend,
		runs:    runs,
		logger:  logger,
	}, nil
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Post("/plan", s.handlePlan)
		r.Get("/runs", s.handleRuns)
	})

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	_ = s.backend.Close()
	_ = s.runs.Close(context.Background())
	return nil
}
