// Package metrics holds the Prometheus collectors for ingestion, search and memory.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

const namespace = "allerac"

// Summary write paths
const (
	SummaryPathCreate     = "create"
	SummaryPathAppend     = "append"
	SummaryPathCorrection = "correction"
)

var (
	// documentsProcessed counts finished ingestions.
	// Labels: outcome (completed, failed)
	documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "documents_total",
		Help:      "Documents that finished processing, by outcome",
	}, []string{"outcome"})

	chunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "chunks_embedded_total",
		Help:      "Chunks embedded and persisted",
	})

	// embedBatchLatency measures provider calls for one batch.
	// Labels: status (success, error)
	embedBatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "embed_batch_seconds",
		Help:      "Embedding batch latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"status"})

	// searchLatency measures Search end to end.
	// Labels: status (success, provider_error, error)
	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "Semantic search latency in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"status"})

	searchHits = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "hits",
		Help:      "Number of hits returned per search",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
	})

	// summariesWritten counts summary writes.
	// Labels: path (create, append, correction)
	summariesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "memory",
		Name:      "summaries_written_total",
		Help:      "Conversation summary writes by path",
	}, []string{"path"})

	staleDocumentsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingestion",
		Name:      "stale_documents_swept_total",
		Help:      "Documents failed by the stale processing sweeper",
	})

	// tasksProcessed counts worker task outcomes.
	// Labels: type, outcome (ack, nack, unknown)
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "Background tasks handled by the worker",
	}, []string{"type", "outcome"})
)

// DocumentProcessed records the terminal status of an ingestion
func DocumentProcessed(status domain.DocumentStatus) {
	documentsProcessed.WithLabelValues(string(status)).Inc()
}

// ChunksEmbedded adds n persisted chunks
func ChunksEmbedded(n int) {
	chunksEmbedded.Add(float64(n))
}

// EmbedBatch observes one embedding batch call
func EmbedBatch(started time.Time, err error) {
	embedBatchLatency.WithLabelValues(statusLabel(err)).Observe(time.Since(started).Seconds())
}

// Search observes one search call and its hit count
func Search(started time.Time, hits int, err error) {
	searchLatency.WithLabelValues(statusLabel(err)).Observe(time.Since(started).Seconds())
	if err == nil {
		searchHits.Observe(float64(hits))
	}
}

// SummaryWritten counts a summary write on path
func SummaryWritten(path string) {
	summariesWritten.WithLabelValues(path).Inc()
}

// StaleDocumentsSwept adds n swept documents
func StaleDocumentsSwept(n int) {
	staleDocumentsSwept.Add(float64(n))
}

// TaskProcessed counts a worker outcome for a task type
func TaskProcessed(taskType domain.TaskType, outcome string) {
	tasksProcessed.WithLabelValues(string(taskType), outcome).Inc()
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}
