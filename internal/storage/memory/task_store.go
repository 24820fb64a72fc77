package memory

import (
	"context"
	"sync"
	"time"

	"storyvault/internal/archive"
)

// TaskStore keeps crawl tasks in a map keyed by task ID.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]archive.CrawlTask
}

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]archive.CrawlTask)}
}

// CreateTask stores a new task record.
func (s *TaskStore) CreateTask(_ context.Context, task archive.CrawlTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.tasks[task.ID] = task
	return nil
}

// GetTask returns one task or ErrNotFound.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (archive.CrawlTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return archive.CrawlTask{}, archive.ErrNotFound
	}
	return task, nil
}

// UpdateTaskProgress moves a task to processing with a new message and percent.
// Completed and failed tasks are immutable; progress writes against them are
// silent no-ops.
func (s *TaskStore) UpdateTaskProgress(_ context.Context, taskID, message string, percent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return archive.ErrNotFound
	}
	if task.Status.Terminal() {
		return nil
	}
	task.Status = archive.TaskProcessing
	task.Message = message
	task.Percent = percent
	s.tasks[taskID] = task
	return nil
}

// CompleteTask marks a task completed at 100 percent.
func (s *TaskStore) CompleteTask(_ context.Context, taskID, storyID string, totalChapters int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return archive.ErrNotFound
	}
	now := time.Now().UTC()
	task.Status = archive.TaskCompleted
	task.Percent = 100
	task.StoryID = storyID
	task.TotalChapters = totalChapters
	task.CompletedAt = &now
	s.tasks[taskID] = task
	return nil
}

// FailTask marks a task failed with an error description.
func (s *TaskStore) FailTask(_ context.Context, taskID, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return archive.ErrNotFound
	}
	now := time.Now().UTC()
	task.Status = archive.TaskFailed
	task.ErrorText = errText
	task.CompletedAt = &now
	s.tasks[taskID] = task
	return nil
}
