// Package cmd defines and implements the CLI commands for the storyvault
// executable.
package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/clock/system"
	"storyvault/internal/config"
	"storyvault/internal/enumerate"
	"storyvault/internal/fetcher"
	collyfetcher "storyvault/internal/fetcher/colly"
	headlessfetcher "storyvault/internal/fetcher/headless"
	"storyvault/internal/id/uuid"
	"storyvault/internal/logging"
	"storyvault/internal/metrics"
	"storyvault/internal/parser"
	"storyvault/internal/pipeline"
	queuemem "storyvault/internal/queue/memory"
	queuepubsub "storyvault/internal/queue/pubsub"
	"storyvault/internal/resolver"
	"storyvault/internal/scheduler"
	"storyvault/internal/stealth"
	gcsstorage "storyvault/internal/storage/gcs"
	localstorage "storyvault/internal/storage/local"
	memorystorage "storyvault/internal/storage/memory"
	"storyvault/internal/storage/postgres"
)

// app holds the wired service graph shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	stories  archive.StoryStore
	chapters archive.ChapterStore
	tasks    archive.TaskStore
	blobs    archive.BlobStore
	queue    archive.Queue

	fetcher    archive.Fetcher
	parser     *parser.Parser
	enumerator *enumerate.Enumerator
	resolver   *resolver.Resolver
	pipeline   *pipeline.Pipeline
	scheduler  *scheduler.Scheduler

	clock archive.Clock
	idGen archive.IDGenerator

	closers []func()
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	a := &app{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		idGen:  uuid.New(),
	}

	a.parser, err = parser.New(cfg.Source.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}

	minDelay, maxDelay := cfg.DelayRange()
	policy := stealth.NewPolicy(minDelay, maxDelay)

	plain := collyfetcher.New(collyfetcher.Config{Timeout: cfg.FetchTimeout()}, policy)
	var headless archive.Fetcher
	mode := archive.FetchPlain
	if cfg.Headless.Enabled {
		hf, err := headlessfetcher.New(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: cfg.FetchTimeout(),
		}, policy)
		if err != nil {
			logger.Warn("headless fetcher init failed, using plain path", zap.Error(err))
		} else {
			headless = hf
			mode = archive.FetchHeadless
			a.closers = append(a.closers, hf.Close)
		}
	}
	a.fetcher = fetcher.NewRouter(plain, headless, fetcher.NewHeuristic(0), logger)

	if err := a.buildStores(ctx); err != nil {
		return nil, err
	}
	if err := a.buildQueue(ctx); err != nil {
		return nil, err
	}

	a.resolver = resolver.New(a.chapters, a.blobs, a.fetcher, a.parser, logger, mode)
	a.enumerator = enumerate.New(a.fetcher, a.parser, logger, mode)
	a.pipeline = pipeline.New(a.enumerator, a.stories, a.chapters, a.resolver, a.fetcher, a.parser, logger, mode)

	a.scheduler = scheduler.New(scheduler.Config{
		Interval:     cfg.SchedulerInterval(),
		Backoff:      cfg.SchedulerBackoff(),
		Category:     cfg.Scheduler.Category,
		Categories:   cfg.Source.Categories,
		MaxStories:   cfg.Scheduler.MaxStories,
		ListingPages: cfg.Scheduler.ListingPages,
		FetchBodies:  cfg.Scheduler.FetchBodies,
	}, a.pipeline, a.enumerator, a.clock, logger)

	return a, nil
}

func (a *app) buildStores(ctx context.Context) error {
	if a.cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: int32(a.cfg.DB.MaxConns),
			MinConns: int32(a.cfg.DB.MinConns),
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if a.stories, err = postgres.NewStoryStoreWithPool(pool); err != nil {
			return err
		}
		if a.chapters, err = postgres.NewChapterStoreWithPool(pool); err != nil {
			return err
		}
		if a.tasks, err = postgres.NewTaskStoreWithPool(pool); err != nil {
			return err
		}
	} else {
		a.logger.Info("no database configured, using in-memory stores")
		a.stories = memorystorage.NewStoryStore()
		a.chapters = memorystorage.NewChapterStore()
		a.tasks = memorystorage.NewTaskStore()
	}

	if a.cfg.Storage.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("closing gcs client", zap.Error(err))
			}
		})
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return fmt.Errorf("init gcs blob store: %w", err)
		}
		a.blobs = blobs
	} else if a.cfg.Storage.LocalDir != "" {
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local blob store: %w", err)
		}
		a.blobs = blobs
	} else {
		a.logger.Info("no bucket or directory configured, archive tier is in-memory")
		a.blobs = memorystorage.NewBlobStore()
	}
	return nil
}

func (a *app) buildQueue(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID != "" {
		q, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID:      a.cfg.PubSub.ProjectID,
			TopicID:        a.cfg.PubSub.TopicID,
			SubscriptionID: a.cfg.PubSub.SubscriptionID,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("init pubsub queue: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := q.Close(); err != nil {
				a.logger.Warn("closing pubsub queue", zap.Error(err))
			}
		})
		a.queue = q
		return nil
	}

	q := queuemem.NewQueue(a.cfg.Worker.QueueDepth)
	a.closers = append(a.closers, q.Close)
	a.queue = q
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
