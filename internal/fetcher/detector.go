package fetcher

import (
	"bytes"
	"strings"

	"storyvault/internal/archive"
)

// Detector decides whether a plain fetch came back blocked and should be
// retried on the script-executing path.
type Detector interface {
	ShouldPromote(res archive.FetchResult) bool
}

// Heuristic implements rule-based promotion: challenge-page markers, empty
// responses, and short script-heavy documents all indicate the source served
// an interstitial instead of content.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. threshold 0 selects the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var challengeMarkers = [][]byte{
	[]byte("cf-chl"),
	[]byte("cf_chl"),
	[]byte("just a moment"),
	[]byte("checking your browser"),
	[]byte("g-recaptcha"),
	[]byte("h-captcha"),
}

// ShouldPromote reports whether the response looks like a block page rather
// than story content.
func (h *Heuristic) ShouldPromote(res archive.FetchResult) bool {
	if res.StatusCode != 200 {
		return false
	}
	body := res.Body
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	return false
}

// scriptDensityHigh reports whether script tags cover at least a quarter of
// the document. Challenge pages are mostly script.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0

	for {
		relStart := strings.Index(lower[pos:], openTag)
		if relStart == -1 {
			break
		}
		start := pos + relStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}

		coverage += next - start
		pos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}

// blockedStatus reports whether an HTTP status is the kind a bot-hostile
// source uses to turn away plain clients.
func blockedStatus(code int) bool {
	switch code {
	case 403, 429, 503:
		return true
	}
	return false
}
