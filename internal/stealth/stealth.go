// Package stealth supplies randomized request identities and pacing for
// crawling a bot-hostile source. Fixed-interval request patterns are a
// detection signal on their own, so every delay is drawn from a range.
package stealth

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Viewport is a browser window size reported to the target.
type Viewport struct {
	Width  int
	Height int
}

var viewports = []Viewport{
	{1920, 1080},
	{1366, 768},
	{1536, 864},
	{1440, 900},
	{1280, 720},
}

// Identity is one randomized request persona.
type Identity struct {
	UserAgent      string
	Viewport       Viewport
	AcceptLanguage string
	Referer        string
}

// Policy draws identities and inter-request delays. Safe for concurrent use.
type Policy struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
	locale   string
	referer  string
}

// NewPolicy builds a Policy with the given delay range. A zero or inverted
// range falls back to [1s, 3s].
func NewPolicy(minDelay, maxDelay time.Duration) *Policy {
	if minDelay <= 0 || maxDelay < minDelay {
		minDelay = 1 * time.Second
		maxDelay = 3 * time.Second
	}
	return &Policy{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		minDelay: minDelay,
		maxDelay: maxDelay,
		locale:   "vi-VN,vi;q=0.9,en;q=0.8",
		referer:  "https://www.google.com/",
	}
}

// NextIdentity draws a fresh persona from the pools.
func (p *Policy) NextIdentity() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Identity{
		UserAgent:      userAgents[p.rng.Intn(len(userAgents))],
		Viewport:       viewports[p.rng.Intn(len(viewports))],
		AcceptLanguage: p.locale,
		Referer:        p.referer,
	}
}

// NextDelay draws a random duration from the configured range.
func (p *Policy) NextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	span := p.maxDelay - p.minDelay
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rng.Int63n(int64(span)))
}

// Pause sleeps for a randomized delay, returning early if the context ends.
func (p *Policy) Pause(ctx context.Context) {
	p.PauseFor(ctx, p.NextDelay())
}

// PauseFor sleeps for the given delay, returning early if the context ends.
func (p *Policy) PauseFor(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
