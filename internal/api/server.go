// Package api exposes the HTTP interface for the archival service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storyvault/internal/archive"
	"storyvault/internal/metrics"
	"storyvault/internal/scheduler"
)

// ContentResolver serves chapter bodies through the tiered cascade.
type ContentResolver interface {
	Resolve(ctx context.Context, storyID string, number int) (archive.ChapterContent, archive.ResolutionSource, error)
}

// SchedulerControl exposes the scheduler operations the API needs.
type SchedulerControl interface {
	StartAuto(ctx context.Context)
	StopAuto()
	RunAsync(ctx context.Context, category string) error
	Snapshot() scheduler.Snapshot
}

// Server wires HTTP handlers to the stores, queue, resolver, and scheduler.
type Server struct {
	router   chi.Router
	stories  archive.StoryStore
	chapters archive.ChapterStore
	tasks    archive.TaskStore
	queue    archive.Queue
	resolver ContentResolver
	sched    SchedulerControl
	idGen    archive.IDGenerator
	clock    archive.Clock
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	stories archive.StoryStore,
	chapters archive.ChapterStore,
	tasks archive.TaskStore,
	queue archive.Queue,
	resolver ContentResolver,
	sched SchedulerControl,
	idGen archive.IDGenerator,
	clock archive.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		stories:  stories,
		chapters: chapters,
		tasks:    tasks,
		queue:    queue,
		resolver: resolver,
		sched:    sched,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.submitCrawl)
		r.Get("/tasks/{task_id}", s.getTask)

		r.Route("/stories/{slug}", func(r chi.Router) {
			r.Get("/", s.getStory)
			r.Get("/chapters", s.listChapters)
			r.Get("/chapters/{number}", s.readChapter)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", s.schedulerStatus)
			r.Post("/auto/start", s.startAuto)
			r.Post("/auto/stop", s.stopAuto)
			r.Post("/run", s.runNow)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL         string `json:"url"`
	FetchBodies *bool  `json:"fetch_bodies"`
	MaxPages    int    `json:"max_pages"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	taskID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate task id: %v", err))
		return
	}

	task := archive.CrawlTask{
		ID:        taskID,
		StoryURL:  req.URL,
		Status:    archive.TaskQueued,
		CreatedAt: s.clock.Now(),
	}
	if err := s.tasks.CreateTask(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create task: %v", err))
		return
	}

	fetchBodies := true
	if req.FetchBodies != nil {
		fetchBodies = *req.FetchBodies
	}
	item := archive.TaskItem{
		TaskID:    taskID,
		URL:       req.URL,
		Options:   archive.CrawlOptions{FetchBodies: fetchBodies, MaxPages: req.MaxPages},
		Submitted: s.clock.Now().Unix(),
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.queue.Enqueue(queueCtx, item); err != nil {
		if failErr := s.tasks.FailTask(r.Context(), taskID, "enqueue failed"); failErr != nil {
			s.logger.Warn("marking unqueued task failed", zap.Error(failErr))
		}
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("enqueue task: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	story, ok := s.storyFromSlug(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"story": story})
}

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request) {
	story, ok := s.storyFromSlug(w, r)
	if !ok {
		return
	}
	chapters, err := s.chapters.ListChapters(r.Context(), story.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stubs := make([]archive.ChapterStub, len(chapters))
	for i, ch := range chapters {
		stubs[i] = archive.ChapterStub{Number: ch.Number, Title: ch.Title, SourceURL: ch.SourceURL}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"story_id": story.ID,
		"chapters": stubs,
	})
}

func (s *Server) readChapter(w http.ResponseWriter, r *http.Request) {
	story, ok := s.storyFromSlug(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeError(w, http.StatusBadRequest, "chapter number must be a positive integer")
		return
	}

	content, source, err := s.resolver.Resolve(r.Context(), story.ID, number)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chapter not found")
			return
		}
		// The chapter row never loaded; there is nothing readable to degrade to.
		if content.Body == "" {
			writeError(w, http.StatusInternalServerError, "chapter lookup failed")
			return
		}
	}
	// Tier failures still produce readable output: the placeholder body with
	// source "error".
	writeJSON(w, http.StatusOK, map[string]any{
		"chapter": content,
		"source":  string(source),
	})
}

func (s *Server) storyFromSlug(w http.ResponseWriter, r *http.Request) (archive.Story, bool) {
	slug := chi.URLParam(r, "slug")
	story, err := s.stories.GetStoryBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "story not found")
			return archive.Story{}, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return archive.Story{}, false
	}
	return story, true
}

func (s *Server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Snapshot())
}

func (s *Server) startAuto(w http.ResponseWriter, r *http.Request) {
	s.sched.StartAuto(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"auto": "started"})
}

func (s *Server) stopAuto(w http.ResponseWriter, _ *http.Request) {
	s.sched.StopAuto()
	writeJSON(w, http.StatusOK, map[string]string{"auto": "stopped"})
}

type runRequest struct {
	Category string `json:"category"`
}

func (s *Server) runNow(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	err := s.sched.RunAsync(context.WithoutCancel(r.Context()), req.Category)
	if err != nil {
		if errors.Is(err, archive.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"category": req.Category, "run": "started"})
}
