// Package collyfetcher implements crawler.FetchCloser using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// Waiter gates every outbound request.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Config controls collector behavior.
type Config struct {
	// BaseURL is the site root; relative request URLs resolve against it.
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Headers     map[string]string
	MaxBodySize int
}

// Fetcher implements crawler.FetchCloser on top of a Colly collector. One
// Fetcher owns one connection pool for the lifetime of a crawl session.
type Fetcher struct {
	cfg           Config
	base          *url.URL
	limiter       Waiter
	headers       http.Header
	transport     *http.Transport
	baseCollector *colly.Collector
	logger        *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchResult is filled by the collector callbacks of a single fetch.
type fetchResult struct {
	statusCode int
	body       []byte
	err        error
}

// New builds a Fetcher.
func New(cfg Config, limiter Waiter, logger *zap.Logger) (*Fetcher, error) {
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	transport := newHTTPTransport()
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)

	headers := http.Header{}
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Fetcher{
		cfg:           cfg,
		base:          base,
		limiter:       limiter,
		headers:       headers,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}, nil
}

// Fetch waits for the rate limiter, then executes a single GET.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (string, error) {
	target, err := f.resolve(request)
	if err != nil {
		return "", &crawler.NetworkError{URL: request.URL, Err: err}
	}
	if f.closed.Load() {
		return "", &crawler.NetworkError{URL: target, Err: crawler.ErrClientClosed}
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", &crawler.NetworkError{URL: target, Err: err}
	}

	start := time.Now()
	result := &fetchResult{}
	collector := f.buildCollector(ctx, request, result)
	body, err := f.runCollector(ctx, collector, target, result)
	duration := time.Since(start)

	metrics.ObserveFetch(target, outcome(err), len(body), duration)
	if err != nil {
		f.logger.Debug("Fetch failed", zap.String("url", target), zap.Duration("duration", duration), zap.Error(err))
		return "", err
	}
	f.logger.Debug("Fetched", zap.String("url", target), zap.Int("bytes", len(body)), zap.Duration("duration", duration))
	return body, nil
}

// Close releases the pooled connections. Subsequent fetches fail with a
// NetworkError wrapping crawler.ErrClientClosed.
func (f *Fetcher) Close() error {
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		f.transport.CloseIdleConnections()
	})
	return nil
}

func (f *Fetcher) resolve(request crawler.FetchRequest) (string, error) {
	ref, err := url.Parse(request.URL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", request.URL, err)
	}
	u := f.base.ResolveReference(ref)
	if len(request.Query) > 0 {
		q := u.Query()
		for key, values := range request.Query {
			q.Del(key)
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// buildCollector clones the base collector and binds it to ctx, so a cancelled
// fetch aborts its HTTP request instead of leaving it running on the shared
// transport.
func (f *Fetcher) buildCollector(ctx context.Context, request crawler.FetchRequest, result *fetchResult) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, request, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, request crawler.FetchRequest, result *fetchResult) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.statusCode = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.statusCode = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, result *fetchResult) (string, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		// The request carries ctx, so Visit returns promptly; wait for it so
		// no request outlives Fetch.
		<-done
		return "", &crawler.NetworkError{URL: target, Err: ctx.Err()}
	case visitErr := <-done:
		switch {
		case ctx.Err() != nil:
			return "", &crawler.NetworkError{URL: target, Err: ctx.Err()}
		case result.err != nil && result.statusCode > 0:
			return "", &crawler.HTTPStatusError{URL: target, StatusCode: result.statusCode}
		case result.err != nil:
			return "", &crawler.NetworkError{URL: target, Err: result.err}
		case visitErr != nil:
			return "", &crawler.NetworkError{URL: target, Err: visitErr}
		}
		if !utf8.Valid(result.body) {
			return "", &crawler.DecodeError{URL: target, Err: errors.New("body is not valid UTF-8")}
		}
		return string(result.body), nil
	}
}

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	for key, values := range f.headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func outcome(err error) string {
	var (
		statusErr  *crawler.HTTPStatusError
		decodeErr  *crawler.DecodeError
		networkErr *crawler.NetworkError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &statusErr):
		return "http_" + strconv.Itoa(statusErr.StatusCode)
	case errors.As(err, &decodeErr):
		return "decode_error"
	case errors.As(err, &networkErr):
		return "network_error"
	default:
		return "error"
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
