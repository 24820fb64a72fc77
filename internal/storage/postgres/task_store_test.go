package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"storyvault/internal/archive"
)

func TestTaskLifecycleStatements(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTaskStoreWithPool(mock)
	require.NoError(t, err)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO crawl_tasks").
		WithArgs("task-1", "https://truyenfull.vision/tien-nghich/", "queued", "", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.CreateTask(ctx, archive.CrawlTask{
		ID:       "task-1",
		StoryURL: "https://truyenfull.vision/tien-nghich/",
		Status:   archive.TaskQueued,
	}))

	mock.ExpectExec("UPDATE crawl_tasks SET status").
		WithArgs("task-1", "processing", "đang liệt kê chương", 10).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.UpdateTaskProgress(ctx, "task-1", "đang liệt kê chương", 10))

	mock.ExpectExec("UPDATE crawl_tasks").
		WithArgs("task-1", "completed", "story-uuid", 42).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.CompleteTask(ctx, "task-1", "story-uuid", 42))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTaskProgressSkipsTerminalTask(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTaskStoreWithPool(mock)
	require.NoError(t, err)

	// The status guard matches no row for a completed task; the write is a
	// no-op rather than an error.
	mock.ExpectExec("UPDATE crawl_tasks SET status").
		WithArgs("task-1", "processing", "đang lưu chương", 50).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.UpdateTaskProgress(context.Background(), "task-1", "đang lưu chương", 50))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailTaskMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTaskStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawl_tasks SET status").
		WithArgs("missing", "failed", "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.FailTask(context.Background(), "missing", "boom")
	require.ErrorIs(t, err, archive.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTaskScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTaskStoreWithPool(mock)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0).UTC()
	completed := created.Add(2 * time.Minute)
	mock.ExpectQuery("SELECT (.+) FROM crawl_tasks").
		WithArgs("task-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "story_url", "status", "message", "percent", "story_id",
			"total_chapters", "error_text", "created_at", "completed_at",
		}).AddRow(
			"task-1", "https://truyenfull.vision/tien-nghich/", "completed", "xong", 100,
			"story-uuid", 42, "", created, &completed,
		))

	task, err := store.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, archive.TaskCompleted, task.Status)
	require.Equal(t, 42, task.TotalChapters)
	require.NotNil(t, task.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
