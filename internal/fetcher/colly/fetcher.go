// Package collyfetcher implements the plain-HTTP fetch path using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"storyvault/internal/archive"
	"storyvault/internal/metrics"
	"storyvault/internal/stealth"
)

// Config controls collector behavior.
type Config struct {
	Timeout time.Duration
}

// Fetcher issues single HTTP GETs with a randomized request identity and a
// mandatory pre-request delay.
type Fetcher struct {
	cfg           Config
	policy        *stealth.Policy
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, policy *stealth.Policy) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		policy:        policy,
		baseCollector: c,
	}
}

// Fetch executes one HTTP GET. The stealth delay runs before the request;
// callers own any post-request pacing.
func (f *Fetcher) Fetch(ctx context.Context, url string, _ archive.FetchMode) (archive.FetchResult, error) {
	f.policy.Pause(ctx)
	if err := ctx.Err(); err != nil {
		return archive.FetchResult{}, fmt.Errorf("fetch canceled: %w", err)
	}

	identity := f.policy.NextIdentity()
	collector := f.baseCollector.Clone()
	collector.UserAgent = identity.UserAgent
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   archive.FetchResult
		fetchErr *archive.FetchError
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", identity.AcceptLanguage)
		r.Headers.Set("Referer", identity.Referer)
	})
	collector.OnResponse(func(r *colly.Response) {
		result = archive.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &archive.FetchError{URL: url, StatusCode: status, Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return archive.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			metrics.ObservePageFetch("plain", fetchErr.StatusCode, time.Since(start))
			return archive.FetchResult{}, fetchErr
		}
		if err != nil {
			return archive.FetchResult{}, &archive.FetchError{URL: url, Err: err}
		}
		metrics.ObservePageFetch("plain", result.StatusCode, result.Duration)
		return result, nil
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
		IdleConnTimeout:       90 * time.Second,
	}
}
