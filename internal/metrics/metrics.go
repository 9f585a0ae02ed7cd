// Package metrics exposes Prometheus instrumentation for crawls and
// subdomain enumeration.
//
// Every Metrics value owns its registry, so tests and concurrent runs never
// collide on the global default registerer. A nil *Metrics is valid and
// records nothing; components take it through an option and never check it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvest"

// Page outcomes used as the "outcome" label of harvest_pages_total.
const (
	OutcomeOK         = "ok"
	OutcomeFetchError = "fetch_error"
	OutcomeParseError = "parse_error"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	pagesTotal       *prometheus.CounterVec
	fetchRetries     prometheus.Counter
	fetchErrors      *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	subdomainLookups *prometheus.CounterVec
	recordsWritten   prometheus.Counter
	activeWorkers    prometheus.Gauge
}

// New creates a Metrics value with its own registry. Go runtime and process
// collectors are registered alongside the harvest collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages recorded by the crawler, by outcome.",
		}, []string{"outcome"}),
		fetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "HTTP fetch retries after transient failures.",
		}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed HTTP fetches, by error kind.",
		}, []string{"kind"}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of a fetch including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		subdomainLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subdomain_lookups_total",
			Help:      "Subdomain candidates looked up, by result.",
		}, []string{"resolved"}),
		recordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_records_written_total",
			Help:      "Records flushed to the output stores.",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Crawl workers currently processing a page.",
		}),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PageRecorded counts a page with the given outcome.
func (m *Metrics) PageRecorded(outcome string) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(outcome).Inc()
}

// FetchRetried counts one retry.
func (m *Metrics) FetchRetried() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

// FetchFailed counts a failed fetch of the given kind.
func (m *Metrics) FetchFailed(kind string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(kind).Inc()
}

// ObserveFetch records the duration of a fetch.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

// LookupDone counts a finished subdomain lookup.
func (m *Metrics) LookupDone(resolved bool) {
	if m == nil {
		return
	}
	m.subdomainLookups.WithLabelValues(strconv.FormatBool(resolved)).Inc()
}

// RecordsWritten counts records flushed to the stores.
func (m *Metrics) RecordsWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsWritten.Add(float64(n))
}

// WorkerStarted and WorkerFinished track busy crawl workers.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// WorkerFinished is the counterpart of WorkerStarted.
func (m *Metrics) WorkerFinished() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}
