package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics, incremented by the worker and the dispatcher.
var (
	RecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plotpipe",
			Name:      "records_processed_total",
			Help:      "Queue records processed by outcome",
		},
		[]string{"outcome"}, // "success" / "retry" / "dead_letter"
	)

	BatchesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plotpipe",
			Name:      "batches_received_total",
			Help:      "Queue batches delivered to the worker",
		},
	)

	DocumentsDispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plotpipe",
			Name:      "documents_dispatched_total",
			Help:      "Candidate documents enqueued by the backfill dispatcher",
		},
	)

	RecordProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "plotpipe",
			Name:      "record_processing_duration_seconds",
			Help:      "Per-record processing duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecordsProcessedTotal)
	prometheus.MustRegister(BatchesReceivedTotal)
	prometheus.MustRegister(DocumentsDispatchedTotal)
	prometheus.MustRegister(RecordProcessingDuration)
	pipelineMetricsRegistered = true
}
