// Package pipeline runs the full archival flow for one story: enumeration,
// metadata persistence, and body backfill into the archive tier.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/enumerate"
	"storyvault/internal/metrics"
	"storyvault/internal/parser"
	"storyvault/internal/resolver"
)

// Chapter metadata is written in batches of this size; a failing batch retries
// row by row so one bad row cannot sink its batch.
const chapterBatchSize = 50

// Archival phases, in execution order.
const (
	PhaseDiscovering = "discovering"
	PhaseMetadata    = "persisting-metadata"
	PhaseBackfill    = "backfilling-content"
	PhaseDone        = "done"
)

// Progress is one progress update emitted during a run. CurrentChapter and
// TotalChapters are zero until the chapter list is known.
type Progress struct {
	Phase          string
	Message        string
	Percent        int
	CurrentChapter int
	TotalChapters  int
}

// ProgressFunc receives progress updates during a run.
type ProgressFunc func(update Progress)

// Result summarizes one archival run.
type Result struct {
	Story          archive.Story
	PagesWalked    int
	TotalChapters  int
	ChaptersStored int
	BodiesFetched  int
	BodiesFailed   int
}

// Pipeline archives one story end to end.
type Pipeline struct {
	enumerator *enumerate.Enumerator
	stories    archive.StoryStore
	chapters   archive.ChapterStore
	resolver   *resolver.Resolver
	fetcher    archive.Fetcher
	parser     *parser.Parser
	logger     *zap.Logger
	mode       archive.FetchMode
}

// New wires an archival pipeline.
func New(
	enumerator *enumerate.Enumerator,
	stories archive.StoryStore,
	chapters archive.ChapterStore,
	res *resolver.Resolver,
	fetcher archive.Fetcher,
	p *parser.Parser,
	logger *zap.Logger,
	mode archive.FetchMode,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		enumerator: enumerator,
		stories:    stories,
		chapters:   chapters,
		resolver:   res,
		fetcher:    fetcher,
		parser:     p,
		logger:     logger,
		mode:       mode,
	}
}

// ArchiveStory enumerates a story, persists its metadata and chapter list, and
// optionally backfills chapter bodies. progress may be nil. Cancellation is
// honored between chapters, so a long backfill stops within one chapter of the
// signal.
func (p *Pipeline) ArchiveStory(ctx context.Context, storyURL string, opts archive.CrawlOptions, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(Progress) {}
	}

	progress(Progress{Phase: PhaseDiscovering, Message: "đang tải trang truyện", Percent: 5})
	detail, pages, err := p.enumerator.EnumerateStory(ctx, storyURL, opts.MaxPages)
	if err != nil {
		return Result{}, fmt.Errorf("enumerate story: %w", err)
	}

	if len(detail.Chapters) == 0 {
		p.logger.Warn("story has no discoverable chapters", zap.String("url", storyURL))
	}

	story := detail.Story
	story.Slug = parser.ExtractSlug(storyURL)
	story.SourceURL = storyURL

	stored, err := p.stories.UpsertStory(ctx, story)
	if err != nil {
		return Result{}, fmt.Errorf("upsert story: %w", err)
	}
	progress(Progress{
		Phase:         PhaseMetadata,
		Message:       fmt.Sprintf("đã lưu truyện, %d chương", len(detail.Chapters)),
		Percent:       10,
		TotalChapters: len(detail.Chapters),
	})

	result := Result{
		Story:         stored,
		PagesWalked:   pages,
		TotalChapters: len(detail.Chapters),
	}

	records := make([]archive.Chapter, len(detail.Chapters))
	for i, stub := range detail.Chapters {
		records[i] = archive.Chapter{
			StoryID:   stored.ID,
			Number:    stub.Number,
			Title:     stub.Title,
			SourceURL: stub.SourceURL,
		}
	}
	result.ChaptersStored = p.storeChapterBatches(ctx, records, progress)

	if opts.FetchBodies {
		if err := p.backfillBodies(ctx, stored.ID, detail.Chapters, progress, &result); err != nil {
			return result, err
		}
	}

	metrics.StoryArchived()
	progress(Progress{
		Phase:          PhaseDone,
		Message:        "hoàn tất",
		Percent:        100,
		CurrentChapter: result.TotalChapters,
		TotalChapters:  result.TotalChapters,
	})
	return result, nil
}

// storeChapterBatches persists metadata in batches and reports progress after
// each one; the metadata phase spans percent 10 to 20.
func (p *Pipeline) storeChapterBatches(ctx context.Context, records []archive.Chapter, progress ProgressFunc) int {
	stored := 0
	for start := 0; start < len(records); start += chapterBatchSize {
		end := start + chapterBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		err := p.chapters.BulkUpsertChapters(ctx, batch)
		if err == nil {
			stored += len(batch)
			p.reportBatch(progress, end, len(records))
			continue
		}
		p.logger.Warn("chapter batch failed, retrying row by row",
			zap.Int("batch_start", start), zap.Int("batch_len", len(batch)), zap.Error(err))

		for _, ch := range batch {
			if err := p.chapters.UpsertChapter(ctx, ch); err != nil {
				p.logger.Warn("chapter upsert failed",
					zap.Int("chapter", ch.Number), zap.Error(err))
				continue
			}
			stored++
		}
		p.reportBatch(progress, end, len(records))
	}
	return stored
}

func (p *Pipeline) reportBatch(progress ProgressFunc, done, total int) {
	if total == 0 {
		return
	}
	progress(Progress{
		Phase:          PhaseMetadata,
		Message:        fmt.Sprintf("đã lưu mục lục %d/%d", done, total),
		Percent:        10 + done*10/total,
		CurrentChapter: done,
		TotalChapters:  total,
	})
}

func (p *Pipeline) backfillBodies(ctx context.Context, storyID string, stubs []archive.ChapterStub, progress ProgressFunc, result *Result) error {
	total := len(stubs)
	for i, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("backfill canceled at chapter %d: %w", stub.Number, err)
		}

		if p.hasContent(ctx, storyID, stub.Number) {
			continue
		}

		body, err := p.fetchBody(ctx, stub)
		if err != nil {
			result.BodiesFailed++
			p.logger.Warn("chapter body fetch failed",
				zap.Int("chapter", stub.Number), zap.String("url", stub.SourceURL), zap.Error(err))
			continue
		}

		if err := p.resolver.ArchiveChapter(ctx, storyID, stub.Number, body); err != nil {
			result.BodiesFailed++
			p.logger.Warn("chapter archive failed",
				zap.Int("chapter", stub.Number), zap.Error(err))
			continue
		}
		result.BodiesFetched++
		metrics.ChapterArchived()

		progress(Progress{
			Phase:          PhaseBackfill,
			Message:        fmt.Sprintf("đã lưu chương %d/%d", i+1, total),
			Percent:        20 + (i+1)*79/total,
			CurrentChapter: i + 1,
			TotalChapters:  total,
		})
	}
	return nil
}

func (p *Pipeline) hasContent(ctx context.Context, storyID string, number int) bool {
	ch, err := p.chapters.GetChapter(ctx, storyID, number)
	if err != nil {
		return false
	}
	return ch.IsArchived || ch.Body != ""
}

func (p *Pipeline) fetchBody(ctx context.Context, stub archive.ChapterStub) (string, error) {
	if stub.SourceURL == "" {
		return "", fmt.Errorf("chapter %d has no source url", stub.Number)
	}
	res, err := p.fetcher.Fetch(ctx, stub.SourceURL, p.mode)
	if err != nil {
		return "", err
	}
	content, err := p.parser.ParseChapterContent(string(res.Body), stub.SourceURL)
	if err != nil {
		return "", err
	}
	if content.Body == "" {
		return "", fmt.Errorf("chapter page yielded no body")
	}
	return content.Body, nil
}
