package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/parser"
)

type fakeChapterStore struct {
	chapters map[string]archive.Chapter
	archived map[string]bool
	inline   map[string]string
}

func newFakeChapterStore() *fakeChapterStore {
	return &fakeChapterStore{
		chapters: map[string]archive.Chapter{},
		archived: map[string]bool{},
		inline:   map[string]string{},
	}
}

func chKey(storyID string, number int) string {
	return fmt.Sprintf("%s#%d", storyID, number)
}

func (s *fakeChapterStore) put(ch archive.Chapter) {
	s.chapters[chKey(ch.StoryID, ch.Number)] = ch
}

func (s *fakeChapterStore) UpsertChapter(_ context.Context, ch archive.Chapter) error {
	s.put(ch)
	return nil
}

func (s *fakeChapterStore) BulkUpsertChapters(_ context.Context, chapters []archive.Chapter) error {
	for _, ch := range chapters {
		s.put(ch)
	}
	return nil
}

func (s *fakeChapterStore) GetChapter(_ context.Context, storyID string, number int) (archive.Chapter, error) {
	ch, ok := s.chapters[chKey(storyID, number)]
	if !ok {
		return archive.Chapter{}, archive.ErrNotFound
	}
	return ch, nil
}

func (s *fakeChapterStore) ListChapters(_ context.Context, _ string) ([]archive.Chapter, error) {
	return nil, nil
}

func (s *fakeChapterStore) SetChapterBody(_ context.Context, storyID string, number int, body string) error {
	s.inline[chKey(storyID, number)] = body
	return nil
}

func (s *fakeChapterStore) SetChapterArchived(_ context.Context, storyID string, number int, archived bool) error {
	s.archived[chKey(storyID, number)] = archived
	return nil
}

type fakeBlobStore struct {
	blobs  map[string][]byte
	putErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (b *fakeBlobStore) Put(_ context.Context, key string, data []byte) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.blobs[key] = data
	return nil
}

func (b *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := b.blobs[key]
	if !ok {
		return nil, archive.ErrBlobNotFound
	}
	return data, nil
}

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ archive.FetchMode) (archive.FetchResult, error) {
	markup, ok := f.pages[url]
	if !ok {
		return archive.FetchResult{}, &archive.FetchError{URL: url, StatusCode: http.StatusNotFound}
	}
	return archive.FetchResult{URL: url, StatusCode: http.StatusOK, Body: []byte(markup)}, nil
}

func newTestResolver(t *testing.T, chapters archive.ChapterStore, blobs archive.BlobStore, fetcher archive.Fetcher) *Resolver {
	t.Helper()
	p, err := parser.New("https://truyenfull.vision", zap.NewNop())
	require.NoError(t, err)
	return New(chapters, blobs, fetcher, p, zap.NewNop(), archive.FetchPlain)
}

func TestResolveServesArchiveTierFirst(t *testing.T) {
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 7, Title: "Chương 7", Body: "inline thua"})

	blobs := newFakeBlobStore()
	compressed, err := gzipBytes([]byte("nội dung từ kho lưu trữ"))
	require.NoError(t, err)
	blobs.blobs[archive.ChapterKey("s1", 7)] = compressed

	r := newTestResolver(t, chapters, blobs, &fakeFetcher{})
	content, source, err := r.Resolve(context.Background(), "s1", 7)
	require.NoError(t, err)
	require.Equal(t, archive.SourceArchive, source)
	require.Equal(t, "nội dung từ kho lưu trữ", content.Body)
	require.Equal(t, "Chương 7", content.Title)
}

func TestResolveCorruptBlobFallsThroughToInline(t *testing.T) {
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 2, Body: "thân bài nội tuyến"})

	blobs := newFakeBlobStore()
	blobs.blobs[archive.ChapterKey("s1", 2)] = []byte("not gzip at all")

	r := newTestResolver(t, chapters, blobs, &fakeFetcher{})
	content, source, err := r.Resolve(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Equal(t, archive.SourceInline, source)
	require.Equal(t, "thân bài nội tuyến", content.Body)
}

func TestResolveLiveFetchWhenBothTiersMiss(t *testing.T) {
	const chapterURL = "https://truyenfull.vision/truyen/chuong-5/"
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 5, SourceURL: chapterURL})

	blobs := newFakeBlobStore()
	fetcher := &fakeFetcher{pages: map[string]string{
		chapterURL: `
			<h2><a class="chapter-title">Chương 5: Tái ngộ</a></h2>
			<div id="chapter-c">
				<p>Đoạn văn đầu tiên của chương năm dài hơn mười ký tự.</p>
			</div>`,
	}}

	r := newTestResolver(t, chapters, blobs, fetcher)
	content, source, err := r.Resolve(context.Background(), "s1", 5)
	require.NoError(t, err)
	require.Equal(t, archive.SourceLive, source)
	require.Contains(t, content.Body, "Đoạn văn đầu tiên")

	// A live read migrates into the archive tier.
	require.Contains(t, blobs.blobs, archive.ChapterKey("s1", 5))
	require.True(t, chapters.archived[chKey("s1", 5)])
}

func TestResolveAllTiersFailedYieldsPlaceholder(t *testing.T) {
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 3, SourceURL: "https://truyenfull.vision/mat/chuong-3/"})

	r := newTestResolver(t, chapters, newFakeBlobStore(), &fakeFetcher{})
	content, source, err := r.Resolve(context.Background(), "s1", 3)
	require.Error(t, err)
	require.Equal(t, archive.SourceError, source)
	require.Equal(t, UnavailableBody, content.Body)
}

func TestResolveUnknownChapter(t *testing.T) {
	r := newTestResolver(t, newFakeChapterStore(), newFakeBlobStore(), &fakeFetcher{})
	_, source, err := r.Resolve(context.Background(), "s1", 99)
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.Equal(t, archive.SourceError, source)
}

func TestArchiveChapterRoundTrips(t *testing.T) {
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 1})
	blobs := newFakeBlobStore()

	r := newTestResolver(t, chapters, blobs, &fakeFetcher{})
	require.NoError(t, r.ArchiveChapter(context.Background(), "s1", 1, "văn bản chương"))

	stored := blobs.blobs[archive.ChapterKey("s1", 1)]
	require.NotEmpty(t, stored)
	plain, err := gunzipBytes(stored)
	require.NoError(t, err)
	require.Equal(t, "văn bản chương", string(plain))
	require.True(t, chapters.archived[chKey("s1", 1)])
}

func TestArchiveChapterBlobFailureKeepsBodyInline(t *testing.T) {
	chapters := newFakeChapterStore()
	chapters.put(archive.Chapter{StoryID: "s1", Number: 1})
	blobs := newFakeBlobStore()
	blobs.putErr = errors.New("bucket unavailable")

	r := newTestResolver(t, chapters, blobs, &fakeFetcher{})
	require.NoError(t, r.ArchiveChapter(context.Background(), "s1", 1, "giữ nội tuyến"))

	require.Equal(t, "giữ nội tuyến", chapters.inline[chKey("s1", 1)])
	require.False(t, chapters.archived[chKey("s1", 1)])
}
