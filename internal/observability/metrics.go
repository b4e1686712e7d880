package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Metrics struct {
	Registry *prometheus.Registry

	OffersTotal          prometheus.Counter
	CategoriesTotal      prometheus.Counter
	LookupMissesTotal    prometheus.Counter
	DuplicateCategories  prometheus.Counter
	RowsWritten          prometheus.Counter
	FeedBytes            prometheus.Counter
	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OffersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_offers_total",
			Help: "Offers read from the feed",
		}),
		CategoriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_categories_total",
			Help: "Distinct categories indexed",
		}),
		LookupMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_category_lookup_misses_total",
			Help: "Offers whose categoryId had no category",
		}),
		DuplicateCategories: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_duplicate_categories_total",
			Help: "Category ids defined more than once",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_rows_written_total",
			Help: "Data rows written to the output file",
		}),
		FeedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ymlexport_feed_bytes_total",
			Help: "Bytes read from the feed",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ymlexport_runs_total",
			Help: "Export runs by result",
		}, []string{"result"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ymlexport_run_duration_seconds",
			Help:    "Wall time of an export run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ymlexport_last_success_timestamp_seconds",
			Help: "Unix time of the last successful export",
		}),
	}

	m.Registry.MustRegister(
		m.OffersTotal,
		m.CategoriesTotal,
		m.LookupMissesTotal,
		m.DuplicateCategories,
		m.RowsWritten,
		m.FeedBytes,
		m.RunsTotal,
		m.RunDuration,
		m.LastSuccessTimestamp,
	)

	return m
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Serve exposes /metrics on addr until the returned server is shut down.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("❌ Metrics listener on %s stopped: %v", addr, err)
		}
	}()

	log.Infof("📈 Serving metrics on %s/metrics", addr)
	return server
}
