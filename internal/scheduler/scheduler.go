// Package scheduler drives long-running archival: a periodic loop over a
// listing category plus manually triggered runs, at most one run in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/pipeline"
)

// StoryArchiver runs the archival pipeline for one story.
type StoryArchiver interface {
	ArchiveStory(ctx context.Context, storyURL string, opts archive.CrawlOptions, progress pipeline.ProgressFunc) (pipeline.Result, error)
}

// Lister enumerates story stubs from a listing.
type Lister interface {
	EnumerateListing(ctx context.Context, listingURL string, maxPages int) ([]archive.StoryStub, error)
}

// Config controls the scheduler's cadence and scope.
type Config struct {
	// Interval between automatic runs.
	Interval time.Duration
	// Backoff applied after a failed automatic run.
	Backoff time.Duration
	// Category names the listing walked by automatic runs.
	Category string
	// Categories maps category names to listing URLs.
	Categories map[string]string
	// MaxStories caps how many stories one run archives.
	MaxStories int
	// ListingPages caps how many listing pages one run walks.
	ListingPages int
	// FetchBodies controls whether runs backfill chapter bodies.
	FetchBodies bool
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.Backoff <= 0 {
		c.Backoff = time.Minute
	}
	if c.Category == "" {
		c.Category = "new"
	}
	if c.MaxStories <= 0 {
		c.MaxStories = 10
	}
	if c.ListingPages <= 0 {
		c.ListingPages = 1
	}
}

// StoryProgress is the progress record of the story currently being archived.
type StoryProgress struct {
	StoryURL       string `json:"story_url"`
	Title          string `json:"title,omitempty"`
	Phase          string `json:"phase"`
	Message        string `json:"message,omitempty"`
	CurrentChapter int    `json:"current_chapter"`
	TotalChapters  int    `json:"total_chapters"`
	Percent        int    `json:"percent"`
}

// Snapshot is a point-in-time view of scheduler state. CurrentStory is nil
// while no story is in flight.
type Snapshot struct {
	AutoEnabled      bool           `json:"auto_enabled"`
	Busy             bool           `json:"busy"`
	LastRunAt        time.Time      `json:"last_run_at,omitempty"`
	LastError        string         `json:"last_error,omitempty"`
	StoriesArchived  int64          `json:"stories_archived"`
	StoriesFailed    int64          `json:"stories_failed"`
	ChaptersArchived int64          `json:"chapters_archived"`
	CurrentStory     *StoryProgress `json:"current_story,omitempty"`
	RecentEvents     []Event        `json:"recent_events"`
}

// Scheduler coordinates automatic and manual archival runs.
type Scheduler struct {
	cfg      Config
	archiver StoryArchiver
	lister   Lister
	clock    archive.Clock
	logger   *zap.Logger
	ring     *ringLog

	storiesArchived  atomic.Int64
	storiesFailed    atomic.Int64
	chaptersArchived atomic.Int64

	mu         sync.Mutex
	busy       bool
	autoCancel context.CancelFunc
	runCancel  context.CancelFunc
	lastRunAt  time.Time
	lastError  string
	current    *StoryProgress

	wg sync.WaitGroup
}

// New wires a Scheduler.
func New(cfg Config, archiver StoryArchiver, lister Lister, clock archive.Clock, logger *zap.Logger) *Scheduler {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		archiver: archiver,
		lister:   lister,
		clock:    clock,
		logger:   logger,
		ring:     newRingLog(32),
	}
}

// StartAuto launches the periodic loop. Starting an already-running loop is a
// no-op.
func (s *Scheduler) StartAuto(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoCancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.autoCancel = cancel

	s.wg.Add(1)
	go s.autoLoop(loopCtx)
	s.record("automatic archival started")
}

// StopAuto stops the periodic loop and cancels the in-flight run, if any. The
// run stops at its next chapter boundary; archived chapters stay intact.
func (s *Scheduler) StopAuto() {
	s.mu.Lock()
	cancel := s.autoCancel
	runCancel := s.runCancel
	s.autoCancel = nil
	s.mu.Unlock()

	if runCancel != nil {
		runCancel()
	}
	if cancel != nil {
		cancel()
		s.record("automatic archival stopped")
	}
}

// Wait blocks until the auto loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) autoLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		delay := s.cfg.Interval
		if err := s.RunOnce(ctx, s.cfg.Category); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("automatic run failed", zap.Error(err))
			delay = s.cfg.Backoff
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunOnce walks one listing category and archives its first stories. A second
// run while one is in flight is rejected with ErrBusy.
func (s *Scheduler) RunOnce(ctx context.Context, category string) error {
	if !s.tryAcquire() {
		return archive.ErrBusy
	}
	defer s.release()
	return s.run(ctx, category)
}

// RunAsync claims the busy flag and runs in the background, so callers get the
// ErrBusy rejection synchronously without waiting out the run.
func (s *Scheduler) RunAsync(ctx context.Context, category string) error {
	if _, ok := s.cfg.Categories[category]; !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	if !s.tryAcquire() {
		return archive.ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		if err := s.run(ctx, category); err != nil {
			s.logger.Warn("manual run failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context, category string) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCancel = cancel
	s.mu.Unlock()
	defer cancel()

	err := s.runCategory(runCtx, category)

	s.mu.Lock()
	s.runCancel = nil
	s.lastRunAt = s.clock.Now()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	return err
}

func (s *Scheduler) runCategory(ctx context.Context, category string) error {
	listingURL, ok := s.cfg.Categories[category]
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	s.record(fmt.Sprintf("run started: category %s", category))

	stubs, err := s.lister.EnumerateListing(ctx, listingURL, s.cfg.ListingPages)
	if err != nil {
		s.record(fmt.Sprintf("listing walk failed: %v", err))
		return fmt.Errorf("enumerate listing %q: %w", category, err)
	}
	if len(stubs) > s.cfg.MaxStories {
		stubs = stubs[:s.cfg.MaxStories]
	}

	opts := archive.CrawlOptions{FetchBodies: s.cfg.FetchBodies}
	for _, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled: %w", err)
		}
		result, err := s.archiver.ArchiveStory(ctx, stub.SourceURL, opts, s.trackProgress(stub))
		s.clearProgress()
		if err != nil {
			s.storiesFailed.Add(1)
			s.logger.Warn("story archival failed",
				zap.String("url", stub.SourceURL), zap.Error(err))
			s.record(fmt.Sprintf("failed: %s", stub.Title))
			continue
		}
		s.storiesArchived.Add(1)
		s.chaptersArchived.Add(int64(result.BodiesFetched))
		s.record(fmt.Sprintf("archived: %s (%d chương)", result.Story.Title, result.TotalChapters))
	}

	s.record(fmt.Sprintf("run finished: category %s, %d truyện", category, len(stubs)))
	return nil
}

// trackProgress builds the callback that mirrors pipeline updates for one
// story into the scheduler state.
func (s *Scheduler) trackProgress(stub archive.StoryStub) pipeline.ProgressFunc {
	return func(update pipeline.Progress) {
		s.mu.Lock()
		s.current = &StoryProgress{
			StoryURL:       stub.SourceURL,
			Title:          stub.Title,
			Phase:          update.Phase,
			Message:        update.Message,
			CurrentChapter: update.CurrentChapter,
			TotalChapters:  update.TotalChapters,
			Percent:        update.Percent,
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) clearProgress() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Snapshot returns the current scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		AutoEnabled: s.autoCancel != nil,
		Busy:        s.busy,
		LastRunAt:   s.lastRunAt,
		LastError:   s.lastError,
	}
	if s.current != nil {
		current := *s.current
		snap.CurrentStory = &current
	}
	s.mu.Unlock()

	snap.StoriesArchived = s.storiesArchived.Load()
	snap.StoriesFailed = s.storiesFailed.Load()
	snap.ChaptersArchived = s.chaptersArchived.Load()
	snap.RecentEvents = s.ring.snapshot()
	return snap
}

func (s *Scheduler) record(message string) {
	s.ring.add(s.clock.Now(), message)
	s.logger.Info(message)
}
