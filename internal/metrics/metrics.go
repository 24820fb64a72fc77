// Package metrics exposes Prometheus collectors for the archival service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal     *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	storiesArchivedTotal  prometheus.Counter
	chaptersArchivedTotal prometheus.Counter
	chapterReadsTotal     *prometheus.CounterVec
	tasksTotal            *prometheus.CounterVec
	activeWorkers         prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyvault_pages_fetched_total",
				Help: "Total pages fetched, labeled by mode and status code.",
			},
			[]string{"mode", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyvault_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by mode.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		)

		storiesArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "storyvault_stories_archived_total",
			Help: "Total stories archived.",
		})

		chaptersArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "storyvault_chapters_archived_total",
			Help: "Total chapter bodies moved into the archive tier.",
		})

		chapterReadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyvault_chapter_reads_total",
				Help: "Total chapter reads, labeled by the tier that served them.",
			},
			[]string{"source"},
		)

		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyvault_tasks_total",
				Help: "Total crawl tasks processed, labeled by final status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "storyvault_active_workers",
			Help: "Workers currently processing a task.",
		})
	})
}

// ObservePageFetch records one page fetch.
func ObservePageFetch(mode string, statusCode int, duration time.Duration) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(mode, strconv.Itoa(statusCode)).Inc()
	fetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// StoryArchived counts one archived story.
func StoryArchived() {
	if storiesArchivedTotal != nil {
		storiesArchivedTotal.Inc()
	}
}

// ChapterArchived counts one chapter body moved into the archive tier.
func ChapterArchived() {
	if chaptersArchivedTotal != nil {
		chaptersArchivedTotal.Inc()
	}
}

// ChapterRead counts one chapter read served by the named tier.
func ChapterRead(source string) {
	if chapterReadsTotal != nil {
		chapterReadsTotal.WithLabelValues(source).Inc()
	}
}

// TaskFinished counts one finished crawl task.
func TaskFinished(status string) {
	if tasksTotal != nil {
		tasksTotal.WithLabelValues(status).Inc()
	}
}

// WorkerStarted marks a worker as busy.
func WorkerStarted() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// WorkerStopped marks a worker as idle.
func WorkerStopped() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
