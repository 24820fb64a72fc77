package archive

import (
	"context"
	"time"
)

// Fetcher retrieves one page of raw markup.
type Fetcher interface {
	Fetch(ctx context.Context, url string, mode FetchMode) (FetchResult, error)
}

// StoryStore persists story metadata, keyed by slug on conflict.
type StoryStore interface {
	UpsertStory(ctx context.Context, story Story) (Story, error)
	GetStoryBySlug(ctx context.Context, slug string) (Story, error)
	GetStoryByID(ctx context.Context, id string) (Story, error)
}

// ChapterStore persists chapter metadata and inline bodies. The conflict key
// is (story_id, chapter_number).
type ChapterStore interface {
	UpsertChapter(ctx context.Context, ch Chapter) error
	BulkUpsertChapters(ctx context.Context, chapters []Chapter) error
	GetChapter(ctx context.Context, storyID string, number int) (Chapter, error)
	ListChapters(ctx context.Context, storyID string) ([]Chapter, error)
	// SetChapterBody writes the inline body tier for a chapter.
	SetChapterBody(ctx context.Context, storyID string, number int, body string) error
	// SetChapterArchived flips the archive flag; archiving clears the inline
	// body so content is never stored twice.
	SetChapterArchived(ctx context.Context, storyID string, number int, archived bool) error
}

// TaskStore persists crawl task lifecycle records.
type TaskStore interface {
	CreateTask(ctx context.Context, task CrawlTask) error
	GetTask(ctx context.Context, taskID string) (CrawlTask, error)
	// UpdateTaskProgress ignores tasks already in a terminal state; completed
	// and failed records never change.
	UpdateTaskProgress(ctx context.Context, taskID, message string, percent int) error
	CompleteTask(ctx context.Context, taskID, storyID string, totalChapters int) error
	FailTask(ctx context.Context, taskID, errText string) error
}

// BlobStore is the compressed archive tier for chapter bodies.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrBlobNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
}

// Queue dispatches crawl tasks to workers.
type Queue interface {
	Enqueue(ctx context.Context, item TaskItem) error
	Dequeue(ctx context.Context) (TaskItem, error)
}

// Clock returns the current time (seam for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task and story identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
