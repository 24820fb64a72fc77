// Package archive defines the core types and collaborator interfaces for the
// story archival engine: stories, chapters, crawl tasks, and the contracts the
// fetch/persistence layers must satisfy.
package archive

import (
	"time"
)

// StoryStatus is the completion state reported by the source site.
type StoryStatus string

const (
	StoryOngoing   StoryStatus = "ongoing"
	StoryCompleted StoryStatus = "completed"
)

// Story is one serialized work, keyed by a slug derived from its source URL.
// ID is the surrogate key assigned by the store on first insert.
type Story struct {
	ID            string      `json:"id"`
	Slug          string      `json:"slug"`
	Title         string      `json:"title"`
	Author        string      `json:"author,omitempty"`
	Description   string      `json:"description,omitempty"`
	Genres        []string    `json:"genres,omitempty"`
	Status        StoryStatus `json:"status"`
	TotalChapters int         `json:"total_chapters"`
	CoverURL      string      `json:"cover_url,omitempty"`
	SourceURL     string      `json:"source_url"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// StoryStub is the thin record extracted from a listing page.
type StoryStub struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	SourceURL     string `json:"source_url"`
	Author        string `json:"author,omitempty"`
	LatestChapter string `json:"latest_chapter,omitempty"`
}

// ChapterStub identifies one chapter discovered during enumeration, before its
// body has been fetched.
type ChapterStub struct {
	Number    int    `json:"chapter_number"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// Chapter is the persisted chapter record. Identity is (StoryID, Number).
// Body is empty when the content lives in the archive tier (IsArchived) or has
// not been fetched yet.
type Chapter struct {
	StoryID    string    `json:"story_id"`
	Number     int       `json:"chapter_number"`
	Title      string    `json:"title"`
	SourceURL  string    `json:"source_url"`
	Body       string    `json:"body,omitempty"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChapterContent is the parsed payload of a single chapter page.
type ChapterContent struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Number    int    `json:"chapter_number,omitempty"`
	SourceURL string `json:"source_url"`
	NextURL   string `json:"next_url,omitempty"`
	PrevURL   string `json:"prev_url,omitempty"`
}

// Pagination describes the paging controls found on a listing or chapter-list
// page.
type Pagination struct {
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	NextURL     string `json:"next_url,omitempty"`
	PrevURL     string `json:"prev_url,omitempty"`
}

// TaskStatus is the lifecycle state of a crawl task.
type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CrawlTask tracks one externally triggered discovery/archival unit of work.
// Only the worker executing the task mutates it after creation.
type CrawlTask struct {
	ID            string     `json:"id"`
	StoryURL      string     `json:"story_url"`
	Status        TaskStatus `json:"status"`
	Message       string     `json:"message,omitempty"`
	Percent       int        `json:"percent"`
	StoryID       string     `json:"story_id,omitempty"`
	TotalChapters int        `json:"total_chapters,omitempty"`
	ErrorText     string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CrawlOptions captures per-task knobs requested by the caller.
type CrawlOptions struct {
	FetchBodies bool `json:"fetch_bodies"`
	MaxPages    int  `json:"max_pages,omitempty"`
}

// TaskItem wraps a task ready for dispatch to a worker.
type TaskItem struct {
	TaskID    string       `json:"task_id"`
	URL       string       `json:"url"`
	Options   CrawlOptions `json:"options"`
	Submitted int64        `json:"submitted"`
}

// FetchMode selects the retrieval path for a page.
type FetchMode int

const (
	// FetchPlain issues a plain HTTP GET.
	FetchPlain FetchMode = iota
	// FetchHeadless renders the page in a script-executing browser first.
	FetchHeadless
)

// FetchResult is the raw markup plus metadata returned by a Fetcher.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Headless   bool
}

// ResolutionSource names the tier that served a chapter body.
type ResolutionSource string

const (
	SourceArchive ResolutionSource = "archive"
	SourceInline  ResolutionSource = "inline"
	SourceLive    ResolutionSource = "live"
	SourceError   ResolutionSource = "error"
)
