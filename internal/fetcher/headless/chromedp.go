// Package headless implements the script-executing fetch path via chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"storyvault/internal/archive"
	"storyvault/internal/metrics"
	"storyvault/internal/stealth"
)

// Binary resources are irrelevant to text extraction and are blocked to bound
// memory and bandwidth.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm",
}

// Config controls the headless fetcher.
type Config struct {
	MaxParallel       int
	NavigationTimeout time.Duration
}

// Fetcher renders pages in headless Chrome and returns the resulting DOM.
type Fetcher struct {
	cfg         Config
	policy      *stealth.Policy
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config, policy *stealth.Policy) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		policy:      policy,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM. The
// stealth delay runs before navigation and again after the DOM settles, so the
// request stream never falls into a fixed cadence.
func (f *Fetcher) Fetch(ctx context.Context, url string, _ archive.FetchMode) (archive.FetchResult, error) {
	if err := f.acquire(ctx); err != nil {
		return archive.FetchResult{}, err
	}
	defer f.release()

	f.policy.Pause(ctx)
	if err := ctx.Err(); err != nil {
		return archive.FetchResult{}, fmt.Errorf("headless fetch canceled: %w", err)
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	identity := f.policy.NextIdentity()
	start := time.Now()

	var html string
	actions := []chromedp.Action{
		f.stealthSetupAction(identity),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		metrics.ObservePageFetch("headless", 0, time.Since(start))
		return archive.FetchResult{}, &archive.FetchError{URL: url, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	f.policy.Pause(ctx)

	metrics.ObservePageFetch("headless", http.StatusOK, time.Since(start))
	return archive.FetchResult{
		URL:        url,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Duration:   time.Since(start),
		Headless:   true,
	}, nil
}

func (f *Fetcher) stealthSetupAction(identity stealth.Identity) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := network.SetBlockedURLs(blockedResourcePatterns).Do(ctx); err != nil {
			return fmt.Errorf("block resource urls: %w", err)
		}
		if err := emulation.SetUserAgentOverride(identity.UserAgent).
			WithAcceptLanguage(identity.AcceptLanguage).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(
			int64(identity.Viewport.Width),
			int64(identity.Viewport.Height),
			1.0,
			false,
		).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if err := network.SetExtraHTTPHeaders(network.Headers{
			"Referer": identity.Referer,
		}).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}
