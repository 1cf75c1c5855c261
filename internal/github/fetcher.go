package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/starford/gistblog/internal/models"
)

const (
	DefaultListTTL = 10 * time.Minute
	DefaultGistTTL = 60 * time.Minute
)

// Cache is the full cache contract used by the Fetcher.
type Cache interface {
	ETagCache
	ReadJSON(key string, ttl time.Duration, v any) bool
	WriteJSON(key string, v any)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	BaseURL  string
	Username string
	ListTTL  time.Duration
	GistTTL  time.Duration
}

// Fetcher lists a user's gists and loads their contents through the cache.
type Fetcher struct {
	client *Client
	cache  Cache
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. The client should share the same cache.
func NewFetcher(client *Client, cache Cache, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = DefaultListTTL
	}
	if cfg.GistTTL <= 0 {
		cfg.GistTTL = DefaultGistTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, cache: cache, cfg: cfg, logger: logger}
}

// ListKey is the cache key of a user's gist list.
func ListKey(username string) string { return "gists_" + username + ".json" }

// GistKey is the cache key of one gist.
func GistKey(id string) string { return "gist_" + id + ".json" }

// List returns the user's public gists. A fresh cache entry avoids the network.
func (f *Fetcher) List(ctx context.Context) ([]models.Gist, error) {
	key := ListKey(f.cfg.Username)

	var cached []models.Gist
	if f.cache.ReadJSON(key, f.cfg.ListTTL, &cached) {
		f.logger.Debug("fetch: list from cache", slog.String("key", key), slog.Int("count", len(cached)))
		return cached, nil
	}

	u := fmt.Sprintf("%s/users/%s/gists?per_page=100", f.cfg.BaseURL, url.PathEscape(f.cfg.Username))
	res, err := f.client.FetchJSON(ctx, u, FetchOptions{ETagKey: key, UseETag: true})
	if err != nil {
		return nil, fmt.Errorf("fetch: list gists for %s: %w", f.cfg.Username, err)
	}

	var all []models.Gist
	if err := json.Unmarshal(res.JSON, &all); err != nil {
		return nil, fmt.Errorf("fetch: decode gist list: %w", err)
	}
	public := make([]models.Gist, 0, len(all))
	for _, g := range all {
		if g.Public {
			public = append(public, g)
		}
	}
	f.cache.WriteJSON(key, public)
	return public, nil
}

// Content returns the full gist, including file contents.
func (f *Fetcher) Content(ctx context.Context, g models.Gist) (*models.Gist, error) {
	key := GistKey(g.ID)

	var cached models.Gist
	if f.cache.ReadJSON(key, f.cfg.GistTTL, &cached) {
		return &cached, nil
	}

	u := g.URL
	if u == "" {
		u = fmt.Sprintf("%s/gists/%s", f.cfg.BaseURL, url.PathEscape(g.ID))
	}
	res, err := f.client.FetchJSON(ctx, u, FetchOptions{ETagKey: key, UseETag: true})
	if err != nil {
		return nil, fmt.Errorf("fetch: gist %s: %w", g.ID, err)
	}

	var full models.Gist
	if err := json.Unmarshal(res.JSON, &full); err != nil {
		return nil, fmt.Errorf("fetch: decode gist %s: %w", g.ID, err)
	}
	f.cache.WriteJSON(key, res.JSON)
	return &full, nil
}
