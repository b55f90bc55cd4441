// Package observability provides ingestion metrics and catalog request statistics.
package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkilian/lakeingest/internal/catalog"
	ingesterr "github.com/arkilian/lakeingest/internal/errors"
	"github.com/arkilian/lakeingest/pkg/types"
)

// IngestMetrics exposes run progress as Prometheus collectors. It implements
// the ingest observer interface and provides a catalog request observer.
type IngestMetrics struct {
	ChunksTotal     *prometheus.CounterVec
	RowsAppended    prometheus.Counter
	ChunkDuration   prometheus.Histogram
	ChunksInFlight  prometheus.Gauge
	CatalogRequests *prometheus.CounterVec
}

// NewIngestMetrics creates the collectors and registers them with reg.
func NewIngestMetrics(reg prometheus.Registerer) (*IngestMetrics, error) {
	m := &IngestMetrics{
		ChunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakeingest_chunks_total",
			Help: "Chunks processed, by outcome.",
		}, []string{"outcome"}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lakeingest_rows_appended_total",
			Help: "Rows committed by successful chunk appends.",
		}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lakeingest_chunk_append_seconds",
			Help:    "Wall time of a single chunk append.",
			Buckets: prometheus.DefBuckets,
		}),
		ChunksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lakeingest_chunks_in_flight",
			Help: "Chunks currently being appended.",
		}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lakeingest_catalog_requests_total",
			Help: "HTTP requests sent to the catalog, by method and status code.",
		}, []string{"method", "code"}),
	}

	for _, c := range []prometheus.Collector{
		m.ChunksTotal, m.RowsAppended, m.ChunkDuration, m.ChunksInFlight, m.CatalogRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *IngestMetrics) ChunkStarted(types.Chunk) {
	m.ChunksInFlight.Inc()
}

func (m *IngestMetrics) ChunkFinished(o types.ChunkOutcome) {
	if ingesterr.GetCode(o.Err) != ingesterr.CodeNotAttempted {
		m.ChunksInFlight.Dec()
		m.ChunkDuration.Observe(o.Duration.Seconds())
	}
	if o.Success {
		m.ChunksTotal.WithLabelValues("success").Inc()
		m.RowsAppended.Add(float64(o.Rows))
		return
	}
	m.ChunksTotal.WithLabelValues("failure").Inc()
}

// ObserveRequest counts a catalog request. Requests without a response are
// counted with code "error".
func (m *IngestMetrics) ObserveRequest(e catalog.RequestEvent) {
	code := "error"
	if e.StatusCode != 0 {
		code = strconv.Itoa(e.StatusCode)
	}
	m.CatalogRequests.WithLabelValues(e.Method, code).Inc()
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format, for the node-exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
