// Package metrics exposes the daemon's Prometheus metrics: ingestion
// throughput, commit-engine latency and reorg counters, and query adapter
// request counts. Values are backed by prometheus/client_golang and served
// over HTTP via promhttp at the configured metrics address.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "monicindex"

// Metrics holds every counter, gauge and histogram the daemon reports.
type Metrics struct {
	Registry *prometheus.Registry

	BlocksIngested   prometheus.Counter
	AddressesIndexed prometheus.Counter
	ReorgsHandled    prometheus.Counter
	CommitLatency    prometheus.Histogram
	IngestLagBlocks  prometheus.Gauge
	NextIndex        prometheus.Gauge
	QueryRequests    *prometheus.CounterVec
	QueryErrors      *prometheus.CounterVec

	// ingestRate tracks blocks/sec with EWMA smoothing for the health
	// report, independent of the Prometheus counters above.
	ingestRate *rateMeter
}

// New creates a Metrics instance with all series registered against a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		BlocksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_ingested_total",
			Help: "Number of blocks whose addresses have been committed.",
		}),
		AddressesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "addresses_indexed_total",
			Help: "Number of distinct addresses assigned an index.",
		}),
		ReorgsHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reorgs_handled_total",
			Help: "Number of single-block reorg rollbacks performed.",
		}),
		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "commit_latency_seconds",
			Help:    "Wall-clock time to stage, verify and persist a batch.",
			Buckets: prometheus.DefBuckets,
		}),
		IngestLagBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ingest_lag_blocks",
			Help: "Difference between upstream chain head and committed head.",
		}),
		NextIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "next_index",
			Help: "Next index to be assigned to a newly observed address.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "query_requests_total",
			Help: "Query adapter requests by method.",
		}, []string{"method"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "query_errors_total",
			Help: "Query adapter errors by method and kind.",
		}, []string{"method", "kind"}),
		ingestRate: newRateMeter(),
	}

	reg.MustRegister(
		m.BlocksIngested,
		m.AddressesIndexed,
		m.ReorgsHandled,
		m.CommitLatency,
		m.IngestLagBlocks,
		m.NextIndex,
		m.QueryRequests,
		m.QueryErrors,
	)
	return m
}

// MarkBlocksIngested records n committed blocks for both the Prometheus
// counter and the EWMA rate meter used by health reporting.
func (m *Metrics) MarkBlocksIngested(n int) {
	m.BlocksIngested.Add(float64(n))
	m.ingestRate.mark(int64(n))
}

// IngestRatePerSecond returns the 1-minute EWMA blocks/sec rate.
func (m *Metrics) IngestRatePerSecond() float64 {
	return m.ingestRate.perSecond()
}

// Handler returns the promhttp handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
