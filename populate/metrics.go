package populate

import "github.com/prometheus/client_golang/prometheus"

var (
	metricBatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "populate_batches",
		Help: "Document batches by final state",
	}, []string{"index", "state"})

	metricDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "populate_documents",
		Help: "Documents confirmed by the search engine",
	}, []string{"index"})

	metricUpdateWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "populate_update_wait_seconds",
		Help:    "Time from batch submission to a final update state",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"index"})

	metricRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "populate_retries",
		Help: "Retried requests after temporary errors",
	}, []string{"index", "operation"})

	metricIndexDocuments = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "populate_index_documents",
		Help: "Documents in the index, as reported by index stats",
	}, []string{"index"})
)

func init() {
	prometheus.MustRegister(metricBatches, metricDocuments, metricUpdateWait, metricRetries, metricIndexDocuments)
}
