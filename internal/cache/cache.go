// Package cache stores fetched JSON payloads and their ETags on disk.
//
// Entries live at <dir>/<key> with the ETag in the sibling <key>.etag. Freshness
// is judged from the file modification time. Every failure degrades to a miss:
// reads return false or "", writes are logged and dropped.
package cache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/starford/gistblog/internal/metrics"
	"github.com/starford/gistblog/internal/storage"
)

const etagSuffix = ".etag"

// Cache is a TTL-aware JSON blob store over a storage.Provider.
type Cache struct {
	store   storage.Provider
	enabled bool
	now     func() time.Time
	logger  *slog.Logger
	rec     *metrics.Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for swallowed write failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithRecorder reports hits and misses to rec.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(c *Cache) { c.rec = rec }
}

// New creates a Cache. A nil store or enabled=false yields bypass mode.
func New(store storage.Provider, enabled bool, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		enabled: enabled && store != nil,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Enabled reports whether the cache reads and writes at all.
func (c *Cache) Enabled() bool { return c.enabled }

// ReadJSON decodes the entry for key into v when it exists and is not older
// than ttl.
func (c *Cache) ReadJSON(key string, ttl time.Duration, v any) bool {
	if !c.enabled {
		return false
	}
	info, err := c.store.Stat(key)
	if err != nil {
		c.rec.CacheLookup(false)
		return false
	}
	if c.now().Sub(info.ModTime()) > ttl {
		c.rec.CacheLookup(false)
		return false
	}
	ok := c.decode(key, v)
	c.rec.CacheLookup(ok)
	return ok
}

// ReadStaleJSON decodes the entry for key into v ignoring its age.
func (c *Cache) ReadStaleJSON(key string, v any) bool {
	if !c.enabled {
		return false
	}
	return c.decode(key, v)
}

func (c *Cache) decode(key string, v any) bool {
	data, err := c.store.Read(key)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Debug("cache: corrupt entry", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// WriteJSON stores v under key.
func (c *Cache) WriteJSON(key string, v any) {
	if !c.enabled {
		return
	}
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			c.logger.Warn("cache: encode failed", slog.String("key", key), slog.String("error", err.Error()))
			return
		}
	}
	if err := c.store.Write(key, data); err != nil {
		c.logger.Warn("cache: write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// ReadETag returns the stored ETag for key, or "".
func (c *Cache) ReadETag(key string) string {
	if !c.enabled {
		return ""
	}
	data, err := c.store.Read(key + etagSuffix)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteETag stores etag for key. Empty values are ignored.
func (c *Cache) WriteETag(key, etag string) {
	if !c.enabled || etag == "" {
		return
	}
	if err := c.store.Write(key+etagSuffix, []byte(etag)); err != nil {
		c.logger.Warn("cache: etag write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
