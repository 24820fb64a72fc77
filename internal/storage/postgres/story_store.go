package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storyvault/internal/archive"
)

// StoryStore persists stories in the `stories` table, keyed by slug.
//
// Assumed schema:
//
//	CREATE TABLE stories (
//		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//		slug TEXT NOT NULL UNIQUE,
//		title TEXT NOT NULL,
//		author TEXT NOT NULL DEFAULT '',
//		description TEXT NOT NULL DEFAULT '',
//		genres TEXT[] NOT NULL DEFAULT '{}',
//		status TEXT NOT NULL DEFAULT 'ongoing',
//		total_chapters INT NOT NULL DEFAULT 0,
//		cover_url TEXT NOT NULL DEFAULT '',
//		source_url TEXT NOT NULL,
//		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type StoryStore struct {
	pool dbPool
}

// NewStoryStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewStoryStoreWithPool(pool dbPool) (*StoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StoryStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *StoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertStorySQL = `
INSERT INTO stories (slug, title, author, description, genres, status, total_chapters, cover_url, source_url)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (slug) DO UPDATE SET
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	description = EXCLUDED.description,
	genres = EXCLUDED.genres,
	status = EXCLUDED.status,
	total_chapters = EXCLUDED.total_chapters,
	cover_url = EXCLUDED.cover_url,
	source_url = EXCLUDED.source_url,
	updated_at = NOW()
RETURNING id, created_at, updated_at`

// UpsertStory inserts a story or refreshes the existing row with the same
// slug, returning the stored record with its surrogate ID.
func (s *StoryStore) UpsertStory(ctx context.Context, story archive.Story) (archive.Story, error) {
	if story.Slug == "" {
		return archive.Story{}, fmt.Errorf("story slug is required")
	}
	err := s.pool.QueryRow(ctx, upsertStorySQL,
		story.Slug,
		story.Title,
		story.Author,
		story.Description,
		story.Genres,
		string(story.Status),
		story.TotalChapters,
		story.CoverURL,
		story.SourceURL,
	).Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		return archive.Story{}, fmt.Errorf("upsert story: %w", err)
	}
	return story, nil
}

const selectStorySQL = `
SELECT id, slug, title, author, description, genres, status, total_chapters, cover_url, source_url, created_at, updated_at
FROM stories `

// GetStoryBySlug looks a story up by its slug.
func (s *StoryStore) GetStoryBySlug(ctx context.Context, slug string) (archive.Story, error) {
	return s.scanStory(s.pool.QueryRow(ctx, selectStorySQL+"WHERE slug = $1", slug))
}

// GetStoryByID looks a story up by its surrogate ID.
func (s *StoryStore) GetStoryByID(ctx context.Context, id string) (archive.Story, error) {
	return s.scanStory(s.pool.QueryRow(ctx, selectStorySQL+"WHERE id = $1", id))
}

func (s *StoryStore) scanStory(row pgx.Row) (archive.Story, error) {
	var story archive.Story
	var status string
	err := row.Scan(
		&story.ID,
		&story.Slug,
		&story.Title,
		&story.Author,
		&story.Description,
		&story.Genres,
		&status,
		&story.TotalChapters,
		&story.CoverURL,
		&story.SourceURL,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.Story{}, archive.ErrNotFound
		}
		return archive.Story{}, fmt.Errorf("select story: %w", err)
	}
	story.Status = archive.StoryStatus(status)
	return story, nil
}
