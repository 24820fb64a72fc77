// Package memory provides in-process implementations of the storage
// interfaces for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyvault/internal/archive"
)

// StoryStore keeps stories in a map keyed by slug.
type StoryStore struct {
	mu      sync.RWMutex
	bySlug  map[string]archive.Story
	slugsID map[string]string
}

// NewStoryStore creates an empty in-memory story store.
func NewStoryStore() *StoryStore {
	return &StoryStore{
		bySlug:  make(map[string]archive.Story),
		slugsID: make(map[string]string),
	}
}

// UpsertStory inserts a story or refreshes an existing one by slug. The
// surrogate ID and creation time survive updates.
func (s *StoryStore) UpsertStory(_ context.Context, story archive.Story) (archive.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.bySlug[story.Slug]; ok {
		story.ID = existing.ID
		story.CreatedAt = existing.CreatedAt
	} else {
		story.ID = uuid.NewString()
		story.CreatedAt = now
	}
	story.UpdatedAt = now

	s.bySlug[story.Slug] = story
	s.slugsID[story.ID] = story.Slug
	return story, nil
}

// GetStoryBySlug looks a story up by its slug.
func (s *StoryStore) GetStoryBySlug(_ context.Context, slug string) (archive.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	story, ok := s.bySlug[slug]
	if !ok {
		return archive.Story{}, archive.ErrNotFound
	}
	return story, nil
}

// GetStoryByID looks a story up by its surrogate ID.
func (s *StoryStore) GetStoryByID(_ context.Context, id string) (archive.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slug, ok := s.slugsID[id]
	if !ok {
		return archive.Story{}, archive.ErrNotFound
	}
	return s.bySlug[slug], nil
}
