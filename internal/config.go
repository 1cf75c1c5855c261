package internal

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/gistblog/internal/github"
	"github.com/starford/gistblog/internal/graph"
	"github.com/starford/gistblog/internal/shaper"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Source  SourceConfig      `yaml:"source"`
	Cache   CacheConfig       `yaml:"cache"`
	Build   BuildConfig       `yaml:"build"`
	Site    SiteConfig        `yaml:"site"`
	Index   IndexConfig       `yaml:"index"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Serve   ServeConfig       `yaml:"serve"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Source, &c.Cache, &c.Build, &c.Site, &c.Serve} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return c.Auth.Validate()
}

// ApplyEnv overrides file settings with the documented environment
// variables. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		*dst = n
		return nil
	}
	millis := func(name string, dst *time.Duration) error {
		var ms int
		if err := num(name, &ms); err != nil {
			return err
		}
		if ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
		return nil
	}

	str("GIST_USERNAME", &c.Source.Username)
	str("GITHUB_TOKEN", &c.Source.Token)
	str("SITE_URL", &c.Site.URL)
	str("SITE_TITLE", &c.Site.Title)
	str("SITE_DESCRIPTION", &c.Site.Description)

	if v, ok := lookup("GIST_CACHE"); ok && v != "" {
		c.Cache.Enabled = !isFalse(v)
	}
	if v, ok := lookup("CI"); ok && v != "" && !isFalse(v) {
		c.Build.FailOnEmpty = true
	}

	for _, f := range []func() error{
		func() error { return millis("GIST_CACHE_TTL_LIST_MS", &c.Cache.ListTTL) },
		func() error { return millis("GIST_CACHE_TTL_GIST_MS", &c.Cache.GistTTL) },
		func() error { return num("GRAPH_MAX_NODES", &c.Build.GraphMaxNodes) },
		func() error { return num("FETCH_CONCURRENCY", &c.Build.Concurrency) },
		func() error { return num("POSTS_PER_PAGE", &c.Build.PostsPerPage) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func isFalse(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig describes where gists come from.
type SourceConfig struct {
	Username       string        `yaml:"username"`
	Token          string        `yaml:"token"`
	APIBaseURL     string        `yaml:"api_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.APIBaseURL, validation.Required, is.URL),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RateLimitDelay, validation.Min(time.Duration(0))),
	)
}

// CacheConfig holds the on-disk response cache settings.
type CacheConfig struct {
	Dir     string        `yaml:"dir"`
	Enabled bool          `yaml:"enabled"`
	ListTTL time.Duration `yaml:"list_ttl"`
	GistTTL time.Duration `yaml:"gist_ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.ListTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.GistTTL, validation.Required, validation.Min(time.Millisecond)),
	)
}

// BuildConfig controls the site build.
type BuildConfig struct {
	DistDir       string `yaml:"dist_dir"`
	Concurrency   int    `yaml:"concurrency"`
	PostsPerPage  int    `yaml:"posts_per_page"`
	GraphMaxNodes int    `yaml:"graph_max_nodes"`
	FailOnEmpty   bool   `yaml:"fail_on_empty"`
	TemplatesDir  string `yaml:"templates_dir"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DistDir, validation.Required),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.PostsPerPage, validation.Required, validation.Min(1)),
		validation.Field(&c.GraphMaxNodes, validation.Required, validation.Min(1)),
	)
}

// SiteConfig is the public identity of the generated site.
type SiteConfig struct {
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Title, validation.Required),
	)
}

// IndexConfig holds the SQLite post index location. An empty path disables the index.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig holds the node-exporter textfile target. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ServeConfig controls the preview server.
type ServeConfig struct {
	Watch           bool          `yaml:"watch"`
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RebuildInterval, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the preview API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Username:       "rbstp",
			APIBaseURL:     github.DefaultBaseURL,
			Timeout:        github.DefaultTimeout,
			RateLimitDelay: github.DefaultRateLimitDelay,
		},
		Cache: CacheConfig{
			Dir:     ".cache",
			Enabled: true,
			ListTTL: github.DefaultListTTL,
			GistTTL: github.DefaultGistTTL,
		},
		Build: BuildConfig{
			DistDir:       "dist",
			Concurrency:   5,
			PostsPerPage:  shaper.DefaultPostsPerPage,
			GraphMaxNodes: graph.DefaultMaxNodes,
		},
		Site: SiteConfig{
			URL:         "https://rbstp.dev",
			Title:       "rbstp.dev",
			Description: "There and Back Again: A DevOps Engineer's Journey Through AI and Infrastructure",
		},
		Index: IndexConfig{
			Path: ".cache/gistblog.db",
		},
		Serve: ServeConfig{
			Watch:           true,
			RebuildInterval: 10 * time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
