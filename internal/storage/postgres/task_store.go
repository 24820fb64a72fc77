package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storyvault/internal/archive"
)

// TaskStore persists crawl task lifecycle records in the `crawl_tasks` table.
//
// Assumed schema:
//
//	CREATE TABLE crawl_tasks (
//		id UUID PRIMARY KEY,
//		story_url TEXT NOT NULL,
//		status TEXT NOT NULL,
//		message TEXT NOT NULL DEFAULT '',
//		percent INT NOT NULL DEFAULT 0,
//		story_id TEXT NOT NULL DEFAULT '',
//		total_chapters INT NOT NULL DEFAULT 0,
//		error_text TEXT NOT NULL DEFAULT '',
//		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		completed_at TIMESTAMPTZ
//	);
type TaskStore struct {
	pool dbPool
}

// NewTaskStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewTaskStoreWithPool(pool dbPool) (*TaskStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &TaskStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *TaskStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateTask stores a new task record.
func (s *TaskStore) CreateTask(ctx context.Context, task archive.CrawlTask) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO crawl_tasks (id, story_url, status, message, percent) VALUES ($1,$2,$3,$4,$5)",
		task.ID, task.StoryURL, string(task.Status), task.Message, task.Percent)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask returns one task or ErrNotFound.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (archive.CrawlTask, error) {
	var task archive.CrawlTask
	var status string
	err := s.pool.QueryRow(ctx, `
SELECT id, story_url, status, message, percent, story_id, total_chapters, error_text, created_at, completed_at
FROM crawl_tasks WHERE id = $1`, taskID).Scan(
		&task.ID,
		&task.StoryURL,
		&status,
		&task.Message,
		&task.Percent,
		&task.StoryID,
		&task.TotalChapters,
		&task.ErrorText,
		&task.CreatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return archive.CrawlTask{}, archive.ErrNotFound
		}
		return archive.CrawlTask{}, fmt.Errorf("select task: %w", err)
	}
	task.Status = archive.TaskStatus(status)
	return task, nil
}

// UpdateTaskProgress moves a task to processing with a new message and percent.
// Tasks already completed or failed are immutable; a progress write against one
// is a silent no-op, as is one against a missing task.
func (s *TaskStore) UpdateTaskProgress(ctx context.Context, taskID, message string, percent int) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE crawl_tasks SET status = $2, message = $3, percent = $4 WHERE id = $1 AND status NOT IN ('completed', 'failed')",
		taskID, string(archive.TaskProcessing), message, percent)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	return nil
}

// CompleteTask marks a task completed at 100 percent.
func (s *TaskStore) CompleteTask(ctx context.Context, taskID, storyID string, totalChapters int) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE crawl_tasks
SET status = $2, percent = 100, story_id = $3, total_chapters = $4, completed_at = NOW()
WHERE id = $1`,
		taskID, string(archive.TaskCompleted), storyID, totalChapters)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return archive.ErrNotFound
	}
	return nil
}

// FailTask marks a task failed with an error description.
func (s *TaskStore) FailTask(ctx context.Context, taskID, errText string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE crawl_tasks SET status = $2, error_text = $3, completed_at = NOW() WHERE id = $1",
		taskID, string(archive.TaskFailed), errText)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return archive.ErrNotFound
	}
	return nil
}
