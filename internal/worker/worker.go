// Package worker consumes crawl tasks from the queue and drives the archival
// pipeline, mirroring progress into the task store.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/metrics"
	"storyvault/internal/pipeline"
)

// Archiver runs the archival pipeline for one story.
type Archiver interface {
	ArchiveStory(ctx context.Context, storyURL string, opts archive.CrawlOptions, progress pipeline.ProgressFunc) (pipeline.Result, error)
}

// Config controls the worker pool.
type Config struct {
	Concurrency int
}

// Worker pulls tasks off the queue and executes them.
type Worker struct {
	cfg      Config
	queue    archive.Queue
	tasks    archive.TaskStore
	archiver Archiver
	logger   *zap.Logger

	wg sync.WaitGroup
}

// New wires a worker pool.
func New(cfg Config, queue archive.Queue, tasks archive.TaskStore, archiver Archiver, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:      cfg,
		queue:    queue,
		tasks:    tasks,
		archiver: archiver,
		logger:   logger,
	}
}

// Start launches the consumer goroutines. They exit when ctx ends.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.consume(ctx)
		}()
	}
}

// Wait blocks until every consumer has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) consume(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item archive.TaskItem) {
	logger := w.logger.With(zap.String("task_id", item.TaskID), zap.String("url", item.URL))
	logger.Info("task started")
	metrics.WorkerStarted()
	defer metrics.WorkerStopped()

	w.progress(ctx, item.TaskID, "đang chuẩn bị", 5)

	result, err := w.archiver.ArchiveStory(ctx, item.URL, item.Options, func(update pipeline.Progress) {
		w.progress(ctx, item.TaskID, update.Message, update.Percent)
	})
	if err != nil {
		if failErr := w.tasks.FailTask(ctx, item.TaskID, err.Error()); failErr != nil {
			logger.Error("recording task failure failed", zap.Error(failErr))
		}
		logger.Warn("task failed", zap.Error(err))
		metrics.TaskFinished(string(archive.TaskFailed))
		return
	}

	if err := w.tasks.CompleteTask(ctx, item.TaskID, result.Story.ID, result.TotalChapters); err != nil {
		logger.Error("recording task completion failed", zap.Error(err))
		return
	}
	metrics.TaskFinished(string(archive.TaskCompleted))
	logger.Info("task completed",
		zap.Int("total_chapters", result.TotalChapters),
		zap.Int("bodies_fetched", result.BodiesFetched))
}

func (w *Worker) progress(ctx context.Context, taskID, message string, percent int) {
	if err := w.tasks.UpdateTaskProgress(ctx, taskID, message, percent); err != nil {
		w.logger.Warn("progress update failed", zap.String("task_id", taskID), zap.Error(err))
	}
}
