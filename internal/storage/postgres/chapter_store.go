package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"storyvault/internal/archive"
)

// ChapterStore persists chapters in the `chapters` table. The conflict key is
// (story_id, chapter_number).
//
// Assumed schema:
//
//	CREATE TABLE chapters (
//		story_id UUID NOT NULL REFERENCES stories(id),
//		chapter_number INT NOT NULL,
//		title TEXT NOT NULL DEFAULT '',
//		source_url TEXT NOT NULL DEFAULT '',
//		body TEXT NOT NULL DEFAULT '',
//		is_archived BOOLEAN NOT NULL DEFAULT FALSE,
//		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		PRIMARY KEY (story_id, chapter_number)
//	);
type ChapterStore struct {
	pool dbPool
}

// NewChapterStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewChapterStoreWithPool(pool dbPool) (*ChapterStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ChapterStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ChapterStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertChapterSQL = `
INSERT INTO chapters (story_id, chapter_number, title, source_url, body)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (story_id, chapter_number) DO UPDATE SET
	title = EXCLUDED.title,
	source_url = EXCLUDED.source_url,
	body = CASE WHEN EXCLUDED.body <> '' THEN EXCLUDED.body ELSE chapters.body END`

// UpsertChapter inserts or refreshes one chapter. An empty incoming body never
// overwrites a stored one, so metadata refreshes cannot wipe content.
func (s *ChapterStore) UpsertChapter(ctx context.Context, ch archive.Chapter) error {
	if ch.StoryID == "" {
		return fmt.Errorf("chapter story id is required")
	}
	if _, err := s.pool.Exec(ctx, upsertChapterSQL,
		ch.StoryID, ch.Number, ch.Title, ch.SourceURL, ch.Body); err != nil {
		return fmt.Errorf("upsert chapter %d: %w", ch.Number, err)
	}
	return nil
}

// BulkUpsertChapters writes a batch of chapters with a single multi-row
// statement. Callers fall back to row-at-a-time UpsertChapter when the batch
// fails, so one bad row cannot sink its whole batch.
func (s *ChapterStore) BulkUpsertChapters(ctx context.Context, chapters []archive.Chapter) error {
	if len(chapters) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO chapters (story_id, chapter_number, title, source_url, body) VALUES ")
	args := make([]any, 0, len(chapters)*5)
	for i, ch := range chapters {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, ch.StoryID, ch.Number, ch.Title, ch.SourceURL, ch.Body)
	}
	sb.WriteString(` ON CONFLICT (story_id, chapter_number) DO UPDATE SET
	title = EXCLUDED.title,
	source_url = EXCLUDED.source_url,
	body = CASE WHEN EXCLUDED.body <> '' THEN EXCLUDED.body ELSE chapters.body END`)

	if _, err := s.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("bulk upsert %d chapters: %w", len(chapters), err)
	}
	return nil
}

const selectChapterSQL = `
SELECT story_id, chapter_number, title, source_url, body, is_archived, created_at
FROM chapters `

// GetChapter returns one chapter or ErrNotFound.
func (s *ChapterStore) GetChapter(ctx context.Context, storyID string, number int) (archive.Chapter, error) {
	row := s.pool.QueryRow(ctx, selectChapterSQL+"WHERE story_id = $1 AND chapter_number = $2", storyID, number)
	ch, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.Chapter{}, archive.ErrNotFound
		}
		return archive.Chapter{}, fmt.Errorf("select chapter: %w", err)
	}
	return ch, nil
}

// ListChapters returns a story's chapters ordered by chapter number.
func (s *ChapterStore) ListChapters(ctx context.Context, storyID string) ([]archive.Chapter, error) {
	rows, err := s.pool.Query(ctx, selectChapterSQL+"WHERE story_id = $1 ORDER BY chapter_number", storyID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var out []archive.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return out, nil
}

// SetChapterBody writes the inline body tier and drops the archive flag.
func (s *ChapterStore) SetChapterBody(ctx context.Context, storyID string, number int, body string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE chapters SET body = $3, is_archived = FALSE WHERE story_id = $1 AND chapter_number = $2",
		storyID, number, body)
	if err != nil {
		return fmt.Errorf("set chapter body: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return archive.ErrNotFound
	}
	return nil
}

// SetChapterArchived flips the archive flag. Archiving clears the inline body
// so content is never stored twice.
func (s *ChapterStore) SetChapterArchived(ctx context.Context, storyID string, number int, archived bool) error {
	query := "UPDATE chapters SET is_archived = $3 WHERE story_id = $1 AND chapter_number = $2"
	if archived {
		query = "UPDATE chapters SET is_archived = $3, body = '' WHERE story_id = $1 AND chapter_number = $2"
	}
	tag, err := s.pool.Exec(ctx, query, storyID, number, archived)
	if err != nil {
		return fmt.Errorf("set chapter archived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return archive.ErrNotFound
	}
	return nil
}

func scanChapter(row pgx.Row) (archive.Chapter, error) {
	var ch archive.Chapter
	err := row.Scan(
		&ch.StoryID,
		&ch.Number,
		&ch.Title,
		&ch.SourceURL,
		&ch.Body,
		&ch.IsArchived,
		&ch.CreatedAt,
	)
	return ch, err
}
