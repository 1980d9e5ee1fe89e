package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	IngestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_ingest_rows_total",
			Help: "Total number of input rows by outcome (processed, rejected)",
		},
		[]string{"outcome"},
	)

	IngestRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_ingest_rejected_total",
			Help: "Total number of rejected rows by reason",
		},
		[]string{"reason"},
	)

	IngestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_ingest_chunks_total",
			Help: "Total number of chunks by result (written, skipped, failed)",
		},
		[]string{"result"},
	)

	IngestChunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "potato_ingest_chunk_duration_seconds",
			Help:    "Time taken to normalize and write one chunk in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	IngestMemoryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "potato_ingest_resident_memory_bytes",
			Help: "Resident memory of the ingest process sampled after each chunk",
		},
	)

	// Store write metrics
	UpsertOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_upsert_operations_total",
			Help: "Total number of upsert operations by result (matched, modified, upserted, failed)",
		},
		[]string{"result"},
	)

	// Normalizer metrics
	FieldConversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_field_conversions_total",
			Help: "Total number of field conversions by field and outcome (attempt, success)",
		},
		[]string{"field", "outcome"},
	)

	// Store state
	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "potato_documents_total",
			Help: "Total number of post documents in the store",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "potato_api_requests_total",
			Help: "Total number of API requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "potato_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AggregateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "potato_aggregate_duration_seconds",
			Help:    "Time taken by the store to run an analytic pipeline in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(IngestRowsTotal)
	prometheus.MustRegister(IngestRejectedTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(IngestChunkDuration)
	prometheus.MustRegister(IngestMemoryBytes)
	prometheus.MustRegister(UpsertOpsTotal)
	prometheus.MustRegister(FieldConversionsTotal)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(AggregateDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
