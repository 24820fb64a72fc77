// Package parser turns raw markup from the source site into typed records.
// Every parse is tolerant of missing optional fields: a page without an
// author, cover, or description still parses, with the field left empty.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	// In-page labels are authoritative for chapter numbering; URLs are
	// sometimes shared or renumbered across reprints.
	titleNumberRe = regexp.MustCompile(`(?i)(?:chương|chapter)\s*(\d+)`)
	urlNumberRe   = regexp.MustCompile(`chuong-(\d+)`)
	pageNumberRe  = regexp.MustCompile(`trang-(\d+)`)
)

// chapterPathMarker distinguishes real chapter links from pagination controls
// whose anchors superficially resemble them.
const chapterPathMarker = "chuong-"

// Parser extracts stories, chapters, and pagination from source-site markup.
// All methods are side-effect free.
type Parser struct {
	base   *url.URL
	logger *zap.Logger
}

// New builds a Parser that resolves relative links against baseURL.
func New(baseURL string, logger *zap.Logger) (*Parser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{base: base, logger: logger}, nil
}

// ExtractSlug derives the stable story identifier from a source URL: the last
// path segment of the trimmed URL.
func ExtractSlug(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// ExtractChapterNumber pulls a chapter number from the title label first,
// falling back to the URL path. Returns 0 when neither yields a number; the
// caller assigns a sequential fallback.
func ExtractChapterNumber(title, chapterURL string) int {
	if m := titleNumberRe.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if m := urlNumberRe.FindStringSubmatch(chapterURL); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}
