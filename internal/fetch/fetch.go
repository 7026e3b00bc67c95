// Package fetch issues cached, deduplicated JSON requests to third-party APIs.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Responses larger than this are rejected.
const maxBodyBytes = 10 << 20

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=fetch_test -destination=mock_http_client_test.go -source=fetch.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string // e.g. "404 Not Found"
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// StatusText returns the reason phrase, e.g. "Not Found".
func (e *StatusError) StatusText() string {
	if _, text, ok := strings.Cut(e.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(e.StatusCode)
}

// Options control a single CachedFetch call.
type Options struct {
	TTL       time.Duration // 0 uses cache.DefaultTTL
	SkipCache bool
	Method    string // empty means GET
	Body      []byte
	Header    http.Header
}

func (o Options) isRead() bool {
	return o.Method == "" || o.Method == http.MethodGet
}

// Result is the outcome of CachedFetch. Failures are reported in Error,
// never as a Go error.
type Result struct {
	Data      jsonvalue.Value `json:"data"`
	FromCache bool            `json:"fromCache"`
	Error     string          `json:"error,omitempty"`
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// Fetcher combines an HTTP client with the request cache.
type Fetcher struct {
	client  HTTPClient
	cache   *cache.Cache
	limiter *hostLimiter
	log     zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout uses a default client with the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// WithRateLimit caps outbound requests per host. perMinute <= 0 disables it.
func WithRateLimit(perMinute, burst int) Option {
	return func(f *Fetcher) { f.limiter = newHostLimiter(perMinute, burst) }
}

// New creates a Fetcher backed by c.
func New(c *cache.Cache, log zerolog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  c,
		log:    log.With().Str("component", "fetch").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CachedFetch serves url from the cache when possible, joins an identical
// in-flight request, or issues a new one. Only successful reads are cached.
//
// The shared request is not tied to ctx: a caller that gives up stops
// waiting, but other callers still receive the result.
func (f *Fetcher) CachedFetch(ctx context.Context, url string, opts Options) Result {
	key := cache.Key(url, opts.Body)
	cacheable := !opts.SkipCache && opts.isRead()

	if cacheable {
		if data, ok := f.cache.Get(key); ok {
			f.log.Debug().Str("url", url).Msg("Cache HIT")
			return Result{Data: data, FromCache: true}
		}
	}

	var (
		p     *cache.Promise
		owner = true
	)
	switch {
	case cacheable:
		p, owner = f.cache.AcquirePending(key)
	case !opts.SkipCache:
		p = cache.NewPromise()
		f.cache.SetPending(key, p)
	default:
		p = cache.NewPromise()
	}

	if owner {
		f.log.Debug().Str("url", url).Msg("Cache MISS")
		go func() {
			data, err := f.Do(context.WithoutCancel(ctx), url, opts)
			if err == nil && cacheable {
				f.cache.Set(key, data, opts.TTL)
			}
			f.cache.Settle(key, p, cache.Result{Data: data, Err: err})
		}()
	} else {
		f.log.Debug().Str("url", url).Msg("Cache DEDUP")
	}

	res, err := p.Wait(ctx)
	if err != nil {
		return Result{FromCache: !owner, Error: err.Error()}
	}
	if res.Err != nil {
		return Result{FromCache: !owner, Error: res.Err.Error()}
	}
	return Result{Data: res.Data, FromCache: !owner}
}

// Do performs one uncached request and decodes the JSON body.
// Non-2xx responses return a *StatusError.
func (f *Fetcher) Do(ctx context.Context, url string, opts Options) (jsonvalue.Value, error) {
	if f.limiter != nil {
		if err := f.limiter.wait(ctx, url); err != nil {
			return jsonvalue.Value{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return jsonvalue.Value{}, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return jsonvalue.Value{}, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := jsonvalue.Decode(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return data, nil
}

func networkError(err error) error {
	if err == nil || err.Error() == "" {
		return errors.New("Network error")
	}
	return err
}
