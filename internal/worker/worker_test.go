package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/pipeline"
	queuemem "storyvault/internal/queue/memory"
	"storyvault/internal/storage/memory"
)

type fakeArchiver struct {
	failURL string
}

func (a *fakeArchiver) ArchiveStory(_ context.Context, storyURL string, _ archive.CrawlOptions, progress pipeline.ProgressFunc) (pipeline.Result, error) {
	if storyURL == a.failURL {
		return pipeline.Result{}, errors.New("fetch story page: status 403")
	}
	progress(pipeline.Progress{
		Phase:          pipeline.PhaseBackfill,
		Message:        "đang lưu chương",
		Percent:        50,
		CurrentChapter: 6,
		TotalChapters:  12,
	})
	return pipeline.Result{
		Story:         archive.Story{ID: "story-uuid", Title: "Tiên Nghịch"},
		TotalChapters: 12,
		BodiesFetched: 12,
	}, nil
}

func startWorker(t *testing.T, archiver Archiver) (*queuemem.Queue, *memory.TaskStore, context.CancelFunc) {
	t.Helper()

	queue := queuemem.NewQueue(4)
	tasks := memory.NewTaskStore()
	w := New(Config{Concurrency: 1}, queue, tasks, archiver, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		w.Wait()
	})
	return queue, tasks, cancel
}

func TestWorkerCompletesTask(t *testing.T) {
	queue, tasks, _ := startWorker(t, &fakeArchiver{})
	ctx := context.Background()

	require.NoError(t, tasks.CreateTask(ctx, archive.CrawlTask{ID: "t1", Status: archive.TaskQueued}))
	require.NoError(t, queue.Enqueue(ctx, archive.TaskItem{TaskID: "t1", URL: "https://truyenfull.vision/tien-nghich/"}))

	require.Eventually(t, func() bool {
		task, err := tasks.GetTask(ctx, "t1")
		return err == nil && task.Status.Terminal()
	}, 2*time.Second, time.Millisecond)

	task, err := tasks.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, archive.TaskCompleted, task.Status)
	require.Equal(t, 100, task.Percent)
	require.Equal(t, "story-uuid", task.StoryID)
	require.Equal(t, 12, task.TotalChapters)
}

func TestWorkerRecordsFailure(t *testing.T) {
	queue, tasks, _ := startWorker(t, &fakeArchiver{failURL: "https://truyenfull.vision/hong/"})
	ctx := context.Background()

	require.NoError(t, tasks.CreateTask(ctx, archive.CrawlTask{ID: "t2", Status: archive.TaskQueued}))
	require.NoError(t, queue.Enqueue(ctx, archive.TaskItem{TaskID: "t2", URL: "https://truyenfull.vision/hong/"}))

	require.Eventually(t, func() bool {
		task, err := tasks.GetTask(ctx, "t2")
		return err == nil && task.Status == archive.TaskFailed
	}, 2*time.Second, time.Millisecond)

	task, err := tasks.GetTask(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, "fetch story page: status 403", task.ErrorText)
	require.NotNil(t, task.CompletedAt)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	queue, _, cancel := startWorker(t, &fakeArchiver{})
	cancel()

	// Enqueue after shutdown; the item stays queued and nothing panics.
	err := queue.Enqueue(context.Background(), archive.TaskItem{TaskID: "t3"})
	require.NoError(t, err)
}
