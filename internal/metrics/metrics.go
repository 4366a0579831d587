// Package metrics - Prometheus metrics for catalog crawl operations
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal counts HTTP fetch attempts by outcome
	// ("success", "retry", "exhausted").
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_attempts_total",
		Help: "Total upstream fetch attempts by outcome",
	}, []string{"outcome"})

	// FetchRetryDelaySeconds tracks the backoff slept between retries.
	FetchRetryDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fetch_retry_delay_seconds",
		Help:    "Backoff duration slept between fetch retries",
		Buckets: prometheus.LinearBuckets(1, 1, 10), // 1s..10s
	})

	// QueueDepth tracks the current depth of a pipeline queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Current number of pending items in a pipeline queue",
	}, []string{"queue"})

	// CrawlDurationSeconds tracks the wall-clock duration of a full crawl.
	CrawlDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crawl_duration_seconds",
		Help:    "Duration of a full catalog crawl",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10s to ~5.7h
	})

	// CardsNormalizedTotal counts cards that passed normalization.
	CardsNormalizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cards_normalized_total",
		Help: "Total product cards successfully normalized",
	})

	// PersistErrorsTotal counts persistence transaction failures.
	PersistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persist_errors_total",
		Help: "Total card persistence failures",
	})

	// ArticleHistoryRowsTotal counts history rows written.
	ArticleHistoryRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "article_history_rows_total",
		Help: "Total article history rows persisted",
	})
)
