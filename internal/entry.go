// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gistblog/internal/api"
	"github.com/starford/gistblog/internal/cache"
	"github.com/starford/gistblog/internal/dates"
	"github.com/starford/gistblog/internal/github"
	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/markdown"
	"github.com/starford/gistblog/internal/mcpserver"
	"github.com/starford/gistblog/internal/metrics"
	"github.com/starford/gistblog/internal/parser"
	"github.com/starford/gistblog/internal/postservice"
	"github.com/starford/gistblog/internal/shaper"
	"github.com/starford/gistblog/internal/site"
	"github.com/starford/gistblog/internal/sse"
	"github.com/starford/gistblog/internal/storage"
	"github.com/starford/gistblog/internal/watch"
)

// runtime holds the wired build pipeline.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	rec     *metrics.Recorder
	dist    *storage.FS
	db      *index.DB
	builder *site.Builder
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup initialises logging and wires every build collaborator.
func (a *application) setup(logOut io.Writer, liveReload bool) (*runtime, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("username", cfg.Source.Username),
		slog.Bool("token", cfg.Source.Token != ""),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("dist_dir", cfg.Build.DistDir),
		slog.String("index_path", cfg.Index.Path),
		slog.Int("concurrency", cfg.Build.Concurrency),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rec := metrics.New()

	var cacheStore storage.Provider
	if cfg.Cache.Enabled {
		fs, err := storage.NewFS(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("init cache dir: %w", err)
		}
		cacheStore = fs
	}
	respCache := cache.New(cacheStore, cfg.Cache.Enabled, cache.WithLogger(logger), cache.WithRecorder(rec))

	client := github.NewClient(&http.Client{}, respCache, github.Options{
		Token:          cfg.Source.Token,
		Timeout:        cfg.Source.Timeout,
		RateLimitDelay: cfg.Source.RateLimitDelay,
	}, github.WithLogger(logger), github.WithRecorder(rec))

	fetcher := github.NewFetcher(client, respCache, github.FetcherConfig{
		BaseURL:  cfg.Source.APIBaseURL,
		Username: cfg.Source.Username,
		ListTTL:  cfg.Cache.ListTTL,
		GistTTL:  cfg.Cache.GistTTL,
	}, logger)

	p := parser.New(cfg.Source.Username, parser.NewTagCache(), markdown.New(markdown.NewMemo()), logger)

	df := dates.New()
	sh := shaper.New(shaper.Options{
		FormatDate:   df.Format,
		Now:          df.Now,
		Clock:        df.Clock,
		PostsPerPage: cfg.Build.PostsPerPage,
	})

	dist, err := storage.NewFS(cfg.Build.DistDir)
	if err != nil {
		return nil, fmt.Errorf("init dist dir: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, rec: rec, dist: dist}

	builderOpts := []site.Option{site.WithLogger(logger), site.WithRecorder(rec)}
	if cfg.Index.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		rt.db = db
		builderOpts = append(builderOpts, site.WithIndex(db))
	}

	rt.builder = site.New(fetcher, p, sh, dist, site.Config{
		Site: site.Info{
			URL:         cfg.Site.URL,
			Title:       cfg.Site.Title,
			Description: cfg.Site.Description,
		},
		Concurrency:     cfg.Build.Concurrency,
		GraphMaxNodes:   cfg.Build.GraphMaxNodes,
		FailOnEmpty:     cfg.Build.FailOnEmpty,
		TemplatesDir:    cfg.Build.TemplatesDir,
		LiveReload:      liveReload,
		MetricsTextfile: cfg.Metrics.Textfile,
	}, builderOpts...)

	return rt, nil
}

// Run performs a single site build.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup(os.Stdout, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.builder.Build(ctx); err != nil {
		rt.logger.Error("Build failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// Serve builds the site, serves it with the preview API and keeps it fresh.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup(os.Stdout, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	var (
		ready   atomic.Bool
		buildMu sync.Mutex
	)
	rebuild := func(ctx context.Context, reason string) {
		buildMu.Lock()
		defer buildMu.Unlock()

		logger.Info("Rebuilding site", slog.String("reason", reason))
		res, err := rt.builder.Build(ctx)
		if err != nil {
			logger.Error("Rebuild failed", slog.String("error", err.Error()))
			broker.PublishRebuild(sse.Rebuild{Error: err.Error()})
			return
		}
		ready.Store(true)
		logger.Info("Notifying preview clients", slog.Int("clients", broker.ClientCount()))
		broker.PublishRebuild(sse.Rebuild{
			BuildID:  res.BuildID,
			Posts:    len(res.Posts),
			Duration: res.Duration.String(),
		})
	}
	rebuild(ctx, "startup")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", rt.rec.Handler())

	if rt.db != nil {
		svc := postservice.NewService(rt.db, rt.dist)
		r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	} else {
		r.Get("/api/events", broker.ServeHTTP)
	}

	r.Handle("/*", http.FileServer(http.Dir(rt.dist.Root())))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Serve.RebuildInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Serve.RebuildInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					rebuild(gCtx, "interval")
				}
			}
		})
	}

	if cfg.Serve.Watch && cfg.Build.TemplatesDir != "" {
		g.Go(func() error {
			err := watch.Watch(gCtx, cfg.Build.TemplatesDir, watch.DefaultDebounce, logger, func(ctx context.Context, paths []string) {
				logger.Info("Templates changed", slog.Any("paths", paths))
				rebuild(ctx, "templates")
			})
			if err != nil {
				logger.Warn("Template watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP refreshes the site and serves MCP tools over stdio. Logs go to
// stderr because stdout carries the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup(os.Stderr, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.db == nil {
		return fmt.Errorf("mcp: index.path must be set")
	}
	if _, err := rt.builder.Build(ctx); err != nil {
		rt.logger.Warn("Initial build failed, serving previous output", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(postservice.NewService(rt.db, rt.dist), app.version)
	rt.logger.Info("MCP server listening on stdio")
	return srv.ServeStdio()
}
