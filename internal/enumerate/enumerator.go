// Package enumerate walks paginated chapter lists and story listings,
// reconciling chapter numbering across pages.
package enumerate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/parser"
)

// Enumerator drives the fetcher and parser across all pages of a chapter list
// or story listing.
type Enumerator struct {
	fetcher archive.Fetcher
	parser  *parser.Parser
	logger  *zap.Logger
	mode    archive.FetchMode
}

// New builds an Enumerator. mode selects the fetch path used for every page.
func New(fetcher archive.Fetcher, p *parser.Parser, logger *zap.Logger, mode archive.FetchMode) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{fetcher: fetcher, parser: p, logger: logger, mode: mode}
}

// EnumerateStory fetches a story page and walks every page of its chapter
// list, up to maxPages when positive. A single page failing to fetch or parse
// is logged and skipped; partial results are expected under a hostile source.
// The returned chapter set has no duplicate numbers (first seen wins) and is
// sorted ascending.
func (e *Enumerator) EnumerateStory(ctx context.Context, storyURL string, maxPages int) (parser.StoryDetail, int, error) {
	res, err := e.fetcher.Fetch(ctx, storyURL, e.mode)
	if err != nil {
		return parser.StoryDetail{}, 0, fmt.Errorf("fetch story page: %w", err)
	}

	detail, err := e.parser.ParseStoryDetail(string(res.Body), storyURL)
	if err != nil {
		return parser.StoryDetail{}, 0, fmt.Errorf("parse story page: %w", err)
	}

	pagination, err := e.parser.ParsePagination(string(res.Body))
	if err != nil {
		return parser.StoryDetail{}, 0, fmt.Errorf("parse pagination: %w", err)
	}

	chapters := detail.Chapters
	totalPages := pagination.TotalPages
	if maxPages > 0 && totalPages > maxPages {
		totalPages = maxPages
	}

	for page := 2; page <= totalPages; page++ {
		if err := ctx.Err(); err != nil {
			return parser.StoryDetail{}, 0, fmt.Errorf("enumeration canceled: %w", err)
		}
		pageURL := chapterPageURL(storyURL, page)
		pageRes, err := e.fetcher.Fetch(ctx, pageURL, e.mode)
		if err != nil {
			e.logger.Warn("chapter list page fetch failed, continuing",
				zap.String("url", pageURL), zap.Int("page", page), zap.Error(err))
			continue
		}
		stubs, err := e.parser.ParseChapterList(string(pageRes.Body))
		if err != nil {
			e.logger.Warn("chapter list page parse failed, continuing",
				zap.String("url", pageURL), zap.Int("page", page), zap.Error(err))
			continue
		}
		chapters = append(chapters, stubs...)
	}

	detail.Chapters = DedupeAndSort(chapters)
	detail.Story.TotalChapters = len(detail.Chapters)
	return detail, totalPages, nil
}

// EnumerateChapters returns the deduplicated, ordered chapter stubs of a story
// plus the number of chapter-list pages walked.
func (e *Enumerator) EnumerateChapters(ctx context.Context, storyURL string, maxPages int) ([]archive.ChapterStub, int, error) {
	detail, totalPages, err := e.EnumerateStory(ctx, storyURL, maxPages)
	if err != nil {
		return nil, 0, err
	}
	return detail.Chapters, totalPages, nil
}

// EnumerateListing walks up to maxPages pages of a story listing, stopping
// early when a page reports no next link.
func (e *Enumerator) EnumerateListing(ctx context.Context, listingURL string, maxPages int) ([]archive.StoryStub, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []archive.StoryStub
	currentURL := listingURL

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, fmt.Errorf("listing enumeration canceled: %w", err)
		}
		res, err := e.fetcher.Fetch(ctx, currentURL, e.mode)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("fetch listing page: %w", err)
			}
			e.logger.Warn("listing page fetch failed, stopping walk",
				zap.String("url", currentURL), zap.Int("page", page), zap.Error(err))
			break
		}
		stubs, err := e.parser.ParseListing(string(res.Body))
		if err != nil {
			e.logger.Warn("listing page parse failed, stopping walk",
				zap.String("url", currentURL), zap.Int("page", page), zap.Error(err))
			break
		}
		all = append(all, stubs...)

		pagination, err := e.parser.ParsePagination(string(res.Body))
		if err != nil || pagination.NextURL == "" {
			break
		}
		currentURL = pagination.NextURL
	}

	return all, nil
}

// DedupeAndSort collapses duplicate chapter numbers (first seen wins, since
// overlapping listing pages repeat chapters) and orders the result ascending.
func DedupeAndSort(stubs []archive.ChapterStub) []archive.ChapterStub {
	seen := make(map[int]struct{}, len(stubs))
	out := make([]archive.ChapterStub, 0, len(stubs))
	for _, stub := range stubs {
		if _, dup := seen[stub.Number]; dup {
			continue
		}
		seen[stub.Number] = struct{}{}
		out = append(out, stub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// chapterPageURL builds the nth chapter-list page for a story.
func chapterPageURL(storyURL string, page int) string {
	return fmt.Sprintf("%s/trang-%d/", strings.TrimRight(storyURL, "/"), page)
}
