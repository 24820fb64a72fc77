// Package resolver serves chapter bodies through a tiered cascade: the
// compressed archive first, the inline database column second, a live fetch
// from the source site last.
package resolver

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/metrics"
	"storyvault/internal/parser"
)

// UnavailableBody is returned in place of chapter text when every tier fails.
const UnavailableBody = "Nội dung chương hiện không khả dụng. Vui lòng thử lại sau."

// Resolver reads chapter bodies tier by tier and migrates content into the
// archive tier.
type Resolver struct {
	chapters archive.ChapterStore
	blobs    archive.BlobStore
	fetcher  archive.Fetcher
	parser   *parser.Parser
	logger   *zap.Logger
	mode     archive.FetchMode
}

// New builds a Resolver. blobs may be nil, which disables the archive tier.
func New(chapters archive.ChapterStore, blobs archive.BlobStore, fetcher archive.Fetcher, p *parser.Parser, logger *zap.Logger, mode archive.FetchMode) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		chapters: chapters,
		blobs:    blobs,
		fetcher:  fetcher,
		parser:   p,
		logger:   logger,
		mode:     mode,
	}
}

// Resolve returns the content of one chapter plus the tier that served it.
// A corrupt or missing archive blob falls through to the next tier rather than
// failing the read. When every tier fails the returned content carries
// UnavailableBody and the source is SourceError; the error describes the last
// tier's failure.
func (r *Resolver) Resolve(ctx context.Context, storyID string, number int) (archive.ChapterContent, archive.ResolutionSource, error) {
	ch, err := r.chapters.GetChapter(ctx, storyID, number)
	if err != nil {
		return archive.ChapterContent{}, archive.SourceError, fmt.Errorf("load chapter %d: %w", number, err)
	}

	content := archive.ChapterContent{
		Title:     ch.Title,
		Number:    ch.Number,
		SourceURL: ch.SourceURL,
	}

	if body, ok := r.fromArchive(ctx, storyID, number); ok {
		content.Body = body
		metrics.ChapterRead(string(archive.SourceArchive))
		return content, archive.SourceArchive, nil
	}

	if ch.Body != "" {
		content.Body = ch.Body
		metrics.ChapterRead(string(archive.SourceInline))
		return content, archive.SourceInline, nil
	}

	live, err := r.fromLive(ctx, ch)
	if err != nil {
		r.logger.Warn("all content tiers failed",
			zap.String("story_id", storyID),
			zap.Int("chapter", number),
			zap.Error(err))
		content.Body = UnavailableBody
		metrics.ChapterRead(string(archive.SourceError))
		return content, archive.SourceError, err
	}

	content.Body = live.Body
	content.NextURL = live.NextURL
	content.PrevURL = live.PrevURL
	if live.Title != "" {
		content.Title = live.Title
	}

	// Best effort: a live read should not stay live forever.
	if err := r.ArchiveChapter(ctx, storyID, number, live.Body); err != nil {
		r.logger.Warn("archiving live chapter failed",
			zap.String("story_id", storyID),
			zap.Int("chapter", number),
			zap.Error(err))
	}

	metrics.ChapterRead(string(archive.SourceLive))
	return content, archive.SourceLive, nil
}

// ArchiveChapter compresses a body into the archive tier and clears the inline
// copy. When the blob write fails the body is kept inline instead, so content
// is never lost to a storage outage.
func (r *Resolver) ArchiveChapter(ctx context.Context, storyID string, number int, body string) error {
	if body == "" {
		return errors.New("empty body")
	}
	if r.blobs == nil {
		return r.chapters.SetChapterBody(ctx, storyID, number, body)
	}

	compressed, err := gzipBytes([]byte(body))
	if err != nil {
		return fmt.Errorf("compress chapter body: %w", err)
	}

	key := archive.ChapterKey(storyID, number)
	if err := r.blobs.Put(ctx, key, compressed); err != nil {
		r.logger.Warn("blob write failed, keeping body inline",
			zap.String("key", key), zap.Error(err))
		return r.chapters.SetChapterBody(ctx, storyID, number, body)
	}

	return r.chapters.SetChapterArchived(ctx, storyID, number, true)
}

func (r *Resolver) fromArchive(ctx context.Context, storyID string, number int) (string, bool) {
	if r.blobs == nil {
		return "", false
	}
	key := archive.ChapterKey(storyID, number)
	data, err := r.blobs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, archive.ErrBlobNotFound) {
			r.logger.Warn("archive tier read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	body, err := gunzipBytes(data)
	if err != nil {
		r.logger.Warn("archive blob is corrupt, falling through",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	return string(body), true
}

func (r *Resolver) fromLive(ctx context.Context, ch archive.Chapter) (archive.ChapterContent, error) {
	if ch.SourceURL == "" {
		return archive.ChapterContent{}, errors.New("chapter has no source url")
	}
	res, err := r.fetcher.Fetch(ctx, ch.SourceURL, r.mode)
	if err != nil {
		return archive.ChapterContent{}, fmt.Errorf("live fetch: %w", err)
	}
	content, err := r.parser.ParseChapterContent(string(res.Body), ch.SourceURL)
	if err != nil {
		return archive.ChapterContent{}, fmt.Errorf("parse live chapter: %w", err)
	}
	if content.Body == "" {
		return archive.ChapterContent{}, errors.New("live page yielded no body")
	}
	return content, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
