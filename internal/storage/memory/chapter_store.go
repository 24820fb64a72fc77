package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storyvault/internal/archive"
)

// ChapterStore keeps chapters in a map keyed by (story ID, chapter number).
type ChapterStore struct {
	mu       sync.RWMutex
	chapters map[string]archive.Chapter
}

// NewChapterStore creates an empty in-memory chapter store.
func NewChapterStore() *ChapterStore {
	return &ChapterStore{chapters: make(map[string]archive.Chapter)}
}

func chapterKey(storyID string, number int) string {
	return fmt.Sprintf("%s/%d", storyID, number)
}

// UpsertChapter inserts or refreshes one chapter. Title and source URL always
// update; the body and archive flag only update when the incoming record
// carries a body, so metadata refreshes never wipe stored content.
func (s *ChapterStore) UpsertChapter(_ context.Context, ch archive.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(ch)
	return nil
}

// BulkUpsertChapters applies UpsertChapter semantics to a batch.
func (s *ChapterStore) BulkUpsertChapters(_ context.Context, chapters []archive.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range chapters {
		s.upsertLocked(ch)
	}
	return nil
}

func (s *ChapterStore) upsertLocked(ch archive.Chapter) {
	key := chapterKey(ch.StoryID, ch.Number)
	if existing, ok := s.chapters[key]; ok {
		existing.Title = ch.Title
		existing.SourceURL = ch.SourceURL
		if ch.Body != "" {
			existing.Body = ch.Body
			existing.IsArchived = ch.IsArchived
		}
		s.chapters[key] = existing
		return
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	s.chapters[key] = ch
}

// GetChapter returns one chapter or ErrNotFound.
func (s *ChapterStore) GetChapter(_ context.Context, storyID string, number int) (archive.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.chapters[chapterKey(storyID, number)]
	if !ok {
		return archive.Chapter{}, archive.ErrNotFound
	}
	return ch, nil
}

// ListChapters returns a story's chapters ordered by chapter number.
func (s *ChapterStore) ListChapters(_ context.Context, storyID string) ([]archive.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []archive.Chapter
	for _, ch := range s.chapters {
		if ch.StoryID == storyID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// SetChapterBody writes the inline body tier for a chapter.
func (s *ChapterStore) SetChapterBody(_ context.Context, storyID string, number int, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chapterKey(storyID, number)
	ch, ok := s.chapters[key]
	if !ok {
		return archive.ErrNotFound
	}
	ch.Body = body
	ch.IsArchived = false
	s.chapters[key] = ch
	return nil
}

// SetChapterArchived flips the archive flag. Archiving clears the inline body.
func (s *ChapterStore) SetChapterArchived(_ context.Context, storyID string, number int, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chapterKey(storyID, number)
	ch, ok := s.chapters[key]
	if !ok {
		return archive.ErrNotFound
	}
	ch.IsArchived = archived
	if archived {
		ch.Body = ""
	}
	s.chapters[key] = ch
	return nil
}
