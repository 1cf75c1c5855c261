// Package github talks to the GitHub gists API with ETag revalidation,
// rate-limit backoff and anonymous fallback.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/starford/gistblog/internal/metrics"
)

const (
	DefaultBaseURL        = "https://api.github.com"
	DefaultUserAgent      = "gist-blog-generator"
	DefaultTimeout        = 30 * time.Second
	DefaultRateLimitDelay = 60 * time.Second

	maxErrorBody = 4 << 10
)

// ErrTimeout is returned when a request exceeds its deadline.
var ErrTimeout = errors.New("github: request timeout")

// StatusError is a non-OK response that survived every retry.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: %s returned %d %s: %s",
		e.URL, e.Status, http.StatusText(e.Status), strings.TrimSpace(e.Body))
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ETagCache is the part of the cache the client needs for revalidation.
type ETagCache interface {
	ReadETag(key string) string
	WriteETag(key, etag string)
	ReadStaleJSON(key string, v any) bool
}

// Options configures a Client.
type Options struct {
	Token          string
	UserAgent      string
	Timeout        time.Duration
	RateLimitDelay time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UserAgent:      DefaultUserAgent,
		Timeout:        DefaultTimeout,
		RateLimitDelay: DefaultRateLimitDelay,
	}
}

// FetchOptions controls one FetchJSON call.
type FetchOptions struct {
	// ETagKey names the cache entry holding the previous body and its ETag.
	ETagKey string
	// Timeout bounds each individual attempt. Zero uses the client default.
	Timeout time.Duration
	// UseETag sends If-None-Match when an ETag is stored for ETagKey.
	UseETag bool
}

// Response is the outcome of a successful FetchJSON.
type Response struct {
	Status int
	JSON   json.RawMessage
}

// Client issues conditional GitHub API requests.
type Client struct {
	doer   Doer
	cache  ETagCache
	opts   Options
	logger *slog.Logger
	rec    *metrics.Recorder
	sleep  func(ctx context.Context, d time.Duration) error
}

// ClientOption configures optional Client collaborators.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithRecorder reports request outcomes to rec.
func WithRecorder(rec *metrics.Recorder) ClientOption {
	return func(c *Client) { c.rec = rec }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a Client. A nil doer uses a plain *http.Client; per-attempt
// deadlines come from contexts, not from the transport.
func NewClient(doer Doer, cache ETagCache, opts Options, extra ...ClientOption) *Client {
	if doer == nil {
		doer = &http.Client{}
	}
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RateLimitDelay < 0 {
		opts.RateLimitDelay = 0
	}
	c := &Client{
		doer:   doer,
		cache:  cache,
		opts:   opts,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, o := range extra {
		o(c)
	}
	return c
}

// attempt describes the headers of one request.
type attempt struct {
	etag string
	auth bool
}

// reply is a fully read HTTP response.
type reply struct {
	status int
	etag   string
	body   []byte
}

// fetchState carries the decision stages through one FetchJSON call.
type fetchState struct {
	url     string
	opts    FetchOptions
	attempt attempt
	reply   *reply
}

// FetchJSON fetches url and returns its JSON body. The stages run in order:
// conditional request, 304 handling, 401 fallback, 403 backoff, other errors
// and commit. Each retry stage fires at most once.
func (c *Client) FetchJSON(ctx context.Context, url string, opts FetchOptions) (*Response, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = c.opts.Timeout
	}
	st := &fetchState{url: url, opts: opts, attempt: c.conditional(opts)}

	if err := c.send(ctx, st); err != nil {
		return nil, err
	}
	if res, done, err := c.handleNotModified(ctx, st); done {
		return res, err
	}
	if err := c.handleUnauthorized(ctx, st); err != nil {
		return nil, err
	}
	if err := c.handleRateLimit(ctx, st); err != nil {
		return nil, err
	}
	if err := c.handleOther(st); err != nil {
		return nil, err
	}
	return c.commit(st)
}

// conditional decides the headers of the first attempt.
func (c *Client) conditional(opts FetchOptions) attempt {
	a := attempt{auth: c.opts.Token != ""}
	if opts.UseETag && opts.ETagKey != "" && c.cache != nil {
		a.etag = c.cache.ReadETag(opts.ETagKey)
	}
	return a
}

func (c *Client) send(ctx context.Context, st *fetchState) error {
	r, err := c.get(ctx, st.url, st.opts.Timeout, st.attempt)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.rec.Request(metrics.OutcomeTimeout)
		} else {
			c.rec.Request(metrics.OutcomeError)
		}
		return err
	}
	st.reply = r
	return nil
}

// handleNotModified serves a 304 from the stale cache entry. When the entry is
// gone the request is repeated once without a validator.
func (c *Client) handleNotModified(ctx context.Context, st *fetchState) (*Response, bool, error) {
	if st.reply.status != http.StatusNotModified || st.attempt.etag == "" {
		return nil, false, nil
	}
	var stale json.RawMessage
	if c.cache != nil && c.cache.ReadStaleJSON(st.opts.ETagKey, &stale) {
		c.rec.Request(metrics.OutcomeNotModified)
		return &Response{Status: http.StatusNotModified, JSON: stale}, true, nil
	}

	c.logger.Info("github: 304 without cached body, refetching",
		slog.String("url", st.url), slog.String("key", st.opts.ETagKey))
	st.attempt.etag = ""
	if err := c.send(ctx, st); err != nil {
		return nil, true, err
	}
	return nil, false, nil
}

// handleUnauthorized retries anonymously once when a token was rejected.
func (c *Client) handleUnauthorized(ctx context.Context, st *fetchState) error {
	if st.reply.status != http.StatusUnauthorized || !st.attempt.auth {
		return nil
	}
	c.logger.Warn("github: token rejected, retrying without authorization", slog.String("url", st.url))
	c.rec.Request(metrics.OutcomeAuthFallback)
	st.attempt = attempt{}
	return c.send(ctx, st)
}

// handleRateLimit waits out a 403 once and retries without a validator.
func (c *Client) handleRateLimit(ctx context.Context, st *fetchState) error {
	if st.reply.status != http.StatusForbidden {
		return nil
	}
	c.logger.Warn("github: rate limited, backing off",
		slog.String("url", st.url), slog.Duration("delay", c.opts.RateLimitDelay))
	c.rec.Request(metrics.OutcomeRateLimited)
	if err := c.sleep(ctx, c.opts.RateLimitDelay); err != nil {
		return err
	}
	st.attempt.etag = ""
	return c.send(ctx, st)
}

func (c *Client) handleOther(st *fetchState) error {
	if st.reply.status >= 200 && st.reply.status < 300 {
		return nil
	}
	c.rec.Request(metrics.OutcomeError)
	return &StatusError{URL: st.url, Status: st.reply.status, Body: string(st.reply.body)}
}

// commit stores the new ETag and returns the body.
func (c *Client) commit(st *fetchState) (*Response, error) {
	if !json.Valid(st.reply.body) {
		c.rec.Request(metrics.OutcomeError)
		return nil, fmt.Errorf("github: %s: response is not valid JSON", st.url)
	}
	if st.opts.ETagKey != "" && st.reply.etag != "" && c.cache != nil {
		c.cache.WriteETag(st.opts.ETagKey, st.reply.etag)
	}
	c.rec.Request(metrics.OutcomeOK)
	return &Response{Status: st.reply.status, JSON: json.RawMessage(st.reply.body)}, nil
}

// get performs one request bounded by timeout and reads the whole body.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration, a attempt) (*reply, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if a.auth {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if a.etag != "" {
		req.Header.Set("If-None-Match", a.etag)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, url, timeout, err)
	}
	defer resp.Body.Close()

	var body []byte
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err = io.ReadAll(resp.Body)
	} else {
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	if err != nil {
		return nil, c.transportError(ctx, url, timeout, err)
	}
	return &reply{status: resp.StatusCode, etag: resp.Header.Get("ETag"), body: body}, nil
}

// transportError separates caller cancellation from a per-attempt timeout.
func (c *Client) transportError(parent context.Context, url string, timeout time.Duration, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, url, timeout)
	}
	return fmt.Errorf("github: get %s: %w", url, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
