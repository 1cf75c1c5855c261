// Package metrics records build and fetch statistics with Prometheus.
//
// A Recorder owns its own registry so that tests and repeated builds in one
// process do not collide on the global default registry. All methods are safe
// to call on a nil *Recorder.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes reported by the GitHub client.
const (
	OutcomeOK           = "ok"
	OutcomeNotModified  = "not_modified"
	OutcomeRateLimited  = "rate_limited"
	OutcomeAuthFallback = "auth_fallback"
	OutcomeError        = "error"
	OutcomeTimeout      = "timeout"
)

// Recorder collects gistblog metrics.
type Recorder struct {
	reg           *prometheus.Registry
	requests      *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	parsed        *prometheus.CounterVec
	postsBuilt    prometheus.Gauge
	buildDuration prometheus.Histogram
}

// New creates a Recorder with a private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gistblog",
			Name:      "github_requests_total",
			Help:      "GitHub API calls by final outcome.",
		}, []string{"outcome"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gistblog",
			Name:      "cache_lookups_total",
			Help:      "Cache reads by result.",
		}, []string{"result"}),
		parsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gistblog",
			Name:      "gists_parsed_total",
			Help:      "Gists run through the parser by result.",
		}, []string{"result"}),
		postsBuilt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gistblog",
			Name:      "posts_built",
			Help:      "Number of posts produced by the last build.",
		}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gistblog",
			Name:      "build_duration_seconds",
			Help:      "Wall time of complete builds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// Request counts one GitHub call outcome.
func (r *Recorder) Request(outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
}

// CacheLookup counts one cache read.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Parsed counts one parser run.
func (r *Recorder) Parsed(ok bool) {
	if r == nil {
		return
	}
	result := "skipped"
	if ok {
		result = "ok"
	}
	r.parsed.WithLabelValues(result).Inc()
}

// BuildFinished records the size and duration of a finished build.
func (r *Recorder) BuildFinished(posts int, d time.Duration) {
	if r == nil {
		return
	}
	r.postsBuilt.Set(float64(posts))
	r.buildDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path in the node-exporter
// textfile collector format. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}
