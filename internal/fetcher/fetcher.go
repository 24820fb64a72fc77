// Package fetcher routes fetch requests to the plain or script-executing
// retrieval path, promoting plain fetches that hit a block page.
package fetcher

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storyvault/internal/archive"
)

// Router implements archive.Fetcher by dispatching on the requested mode. A
// plain fetch that returns a blocked status or a challenge page is retried on
// the headless path when one is configured.
type Router struct {
	plain    archive.Fetcher
	headless archive.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewRouter builds a Router. headless may be nil; headless requests then fall
// back to the plain path with a warning. detector may be nil to disable
// promotion.
func NewRouter(plain, headless archive.Fetcher, detector Detector, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{plain: plain, headless: headless, detector: detector, logger: logger}
}

// Fetch dispatches to the path selected by mode.
func (r *Router) Fetch(ctx context.Context, url string, mode archive.FetchMode) (archive.FetchResult, error) {
	if mode == archive.FetchHeadless {
		if r.headless != nil {
			return r.headless.Fetch(ctx, url, mode)
		}
		r.logger.Warn("headless fetch requested but not configured, using plain path", zap.String("url", url))
	}

	res, err := r.plain.Fetch(ctx, url, archive.FetchPlain)
	if r.headless == nil {
		return res, err
	}

	if err != nil {
		var fetchErr *archive.FetchError
		if errors.As(err, &fetchErr) && blockedStatus(fetchErr.StatusCode) {
			r.logger.Info("plain fetch blocked, promoting to headless",
				zap.String("url", url), zap.Int("status", fetchErr.StatusCode))
			return r.headless.Fetch(ctx, url, archive.FetchHeadless)
		}
		return res, err
	}

	if r.detector != nil && r.detector.ShouldPromote(res) {
		r.logger.Info("challenge page detected, promoting to headless", zap.String("url", url))
		return r.headless.Fetch(ctx, url, archive.FetchHeadless)
	}
	return res, nil
}
