// Package site orchestrates a build: fetch, parse, shape and write the static site.
package site

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gistblog/internal/apperr"
	"github.com/starford/gistblog/internal/graph"
	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/metrics"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/pool"
	"github.com/starford/gistblog/internal/shaper"
	"github.com/starford/gistblog/internal/storage"
)

// Output paths inside the dist directory.
const (
	IndexFile = "index.html"
	FeedFile  = "feed.xml"
	GraphPage = "graph.html"
	GraphData = "graph.json"
	PostsDir  = "posts"

	legacyPageDir = "page"
	writeLimit    = 8
)

// Source lists remote documents and loads their contents.
type Source interface {
	List(ctx context.Context) ([]models.Gist, error)
	Content(ctx context.Context, g models.Gist) (*models.Gist, error)
}

// PostParser turns a full gist into a post, or nil when it is not publishable.
type PostParser interface {
	Parse(g *models.Gist) *models.Post
}

// Config tunes a Builder.
type Config struct {
	Site          Info
	Concurrency   int
	GraphMaxNodes int
	FailOnEmpty   bool
	// TemplatesDir overrides embedded templates file by file.
	TemplatesDir string
	// LiveReload adds the SSE reload hook to every page.
	LiveReload bool
	// MetricsTextfile, when set, receives the metrics after each build.
	MetricsTextfile string
}

// Result summarises one build.
type Result struct {
	BuildID  string
	Posts    []models.Post
	Graph    models.Graph
	Index    index.SyncStats
	Duration time.Duration
}

// Builder runs builds. It is safe to call Build from one goroutine at a time.
type Builder struct {
	src    Source
	parser PostParser
	shaper *shaper.Shaper
	dist   storage.Provider
	cfg    Config

	index  index.PostIndex
	rec    *metrics.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// Option configures optional Builder collaborators.
type Option func(*Builder)

// WithIndex syncs every successful build into idx.
func WithIndex(idx index.PostIndex) Option {
	return func(b *Builder) { b.index = idx }
}

// WithRecorder records build metrics.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(b *Builder) { b.rec = rec }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithClock overrides the build clock.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a Builder writing into dist.
func New(src Source, p PostParser, sh *shaper.Shaper, dist storage.Provider, cfg Config, opts ...Option) *Builder {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 5
	}
	if cfg.GraphMaxNodes < 1 {
		cfg.GraphMaxNodes = graph.DefaultMaxNodes
	}
	b := &Builder{src: src, parser: p, shaper: sh, dist: dist, cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs one full build. A failed document list aborts the build;
// individual documents that fail to load or parse are skipped.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := b.now()
	res := &Result{BuildID: uuid.NewString()}
	logger := b.logger.With(slog.String("build_id", res.BuildID))
	logger.Info("build: started")

	theme, err := LoadTheme(b.cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	if err := b.dist.RemoveAll(legacyPageDir); err != nil {
		logger.Warn("build: remove legacy pages", slog.String("error", err.Error()))
	}

	gists, err := b.src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("build: list documents: %w", err)
	}

	parsed := pool.Map(ctx, logger, gists, b.cfg.Concurrency, func(ctx context.Context, g models.Gist, _ int) (*models.Post, error) {
		full, err := b.src.Content(ctx, g)
		if err != nil {
			b.rec.Parsed(false)
			return nil, err
		}
		p := b.parser.Parse(full)
		b.rec.Parsed(p != nil)
		return p, nil
	})

	posts := make([]models.Post, 0, len(parsed))
	for _, p := range parsed {
		if p != nil {
			posts = append(posts, *p)
		}
	}
	SortNewestFirst(posts)
	res.Posts = posts

	if len(posts) == 0 {
		logger.Error("build: no posts produced", slog.Int("documents", len(gists)))
		if b.cfg.FailOnEmpty {
			return res, apperr.ErrNoPosts
		}
	}

	res.Graph = graph.BuildFromPosts(posts, b.cfg.GraphMaxNodes)
	if err := b.write(ctx, theme, posts, res.Graph); err != nil {
		return nil, err
	}

	if b.index != nil {
		stats, err := index.Sync(b.index, posts, logger)
		if err != nil {
			logger.Warn("build: index sync failed", slog.String("error", err.Error()))
		}
		res.Index = stats
	}

	res.Duration = b.now().Sub(start)
	b.rec.BuildFinished(len(posts), res.Duration)
	if err := b.rec.WriteTextfile(b.cfg.MetricsTextfile); err != nil {
		logger.Warn("build: metrics textfile", slog.String("error", err.Error()))
	}

	logger.Info("build: complete",
		slog.Int("posts", len(posts)),
		slog.Int("documents", len(gists)),
		slog.Int("tags", len(res.Graph.Nodes)),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// SortNewestFirst orders posts by creation time, newest first, then by id.
func SortNewestFirst(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (b *Builder) page(title string, data any, now time.Time) Page {
	return Page{
		Title:      title,
		Site:       b.cfg.Site,
		Timestamp:  now.UnixMilli(),
		LiveReload: b.cfg.LiveReload,
		Data:       data,
	}
}

func (b *Builder) write(ctx context.Context, theme *Theme, posts []models.Post, g models.Graph) error {
	now := b.now()

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(writeLimit)

	render := func(file, tmpl string, p Page) {
		eg.Go(func() error {
			out, err := theme.Render(tmpl, p)
			if err != nil {
				return err
			}
			return b.dist.Write(file, out)
		})
	}

	render(IndexFile, IndexTemplate, b.page("main", b.shaper.IndexData(posts), now))
	for _, p := range posts {
		render(path.Join(PostsDir, p.ID+".html"), PostTemplate, b.page(p.Title, b.shaper.PostData(p), now))
	}
	render(GraphPage, GraphTemplate, b.page("tags graph", struct{ Timestamp int64 }{now.UnixMilli()}, now))

	eg.Go(func() error {
		out, err := Feed(b.cfg.Site, posts, now)
		if err != nil {
			return fmt.Errorf("build: feed: %w", err)
		}
		return b.dist.Write(FeedFile, out)
	})
	eg.Go(func() error {
		out, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("build: graph: %w", err)
		}
		return b.dist.Write(GraphData, out)
	})
	for _, name := range StaticFiles {
		eg.Go(func() error {
			return b.dist.Write(name, theme.Static(name))
		})
	}

	return eg.Wait()
}
