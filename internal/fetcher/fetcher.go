// Package fetcher retrieves site markup over HTTP using gocolly, classifying
// failures so the runner can apply the right retry policy.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

// RateLimiter gates outgoing requests per site.
type RateLimiter interface {
	Wait(ctx context.Context, siteID string) error
	Throttle(siteID string)
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements scraper.Fetcher using the Colly collector.
type Fetcher struct {
	cfg     Config
	limiter RateLimiter
	base    *colly.Collector
	logger  *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, limiter RateLimiter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 15 * time.Second,
		MaxIdleConns:        64,
		IdleConnTimeout:     90 * time.Second,
	})
	return &Fetcher{cfg: cfg, limiter: limiter, base: c, logger: logger}
}

// Fetch waits for the site's rate limit, then executes a single GET.
// Failures come back as *scraper.FetchError; a 429 additionally throttles
// the site's bucket.
func (f *Fetcher) Fetch(ctx context.Context, site scraper.Site) ([]byte, error) {
	// A URL that cannot be parsed will never fetch no matter how often it is
	// retried, so it is rejected up front as a non-transient failure.
	if err := validateURL(site.URL); err != nil {
		return nil, &scraper.FetchError{Kind: scraper.FetchErrBlocked, Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	if err := f.limiter.Wait(waitCtx, site.ID); err != nil {
		if ctx.Err() != nil {
			return nil, &scraper.FetchError{Kind: scraper.FetchErrNetwork, Err: ctx.Err()}
		}
		return nil, &scraper.FetchError{Kind: scraper.FetchErrTimeout, Err: err}
	}

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body       []byte
		statusCode int
		cbErr      error
	)
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			statusCode = r.StatusCode
		}
		cbErr = err
	})

	start := time.Now()
	visitErr := collector.Visit(site.URL)
	collector.Wait()

	if err := f.classify(site, statusCode, visitErr, cbErr); err != nil {
		return nil, err
	}

	f.logger.Debug("fetched site",
		zap.String("site", site.Name),
		zap.Int("status", statusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return body, nil
}

// classify maps the collector outcome onto the fetch failure taxonomy.
func (f *Fetcher) classify(site scraper.Site, status int, visitErr, cbErr error) error {
	err := visitErr
	if err == nil {
		err = cbErr
	}

	if status >= 400 {
		if status == http.StatusTooManyRequests {
			f.limiter.Throttle(site.ID)
		}
		return &scraper.FetchError{Kind: scraper.FetchErrHTTPStatus, Status: status, Err: err}
	}
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, colly.ErrRobotsTxtBlocked):
		return &scraper.FetchError{Kind: scraper.FetchErrBlocked, Err: err}
	case isTimeout(err):
		return &scraper.FetchError{Kind: scraper.FetchErrTimeout, Err: err}
	default:
		return &scraper.FetchError{Kind: scraper.FetchErrNetwork, Err: fmt.Errorf("fetch %s: %w", site.URL, err)}
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid site url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid site url %q: need an absolute http(s) url", raw)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
