// Package metrics exports gisdb operational metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/gisdb"
)

// Namespace prefixes all metric names.
const Namespace = "gisdb"

var durationBuckets = []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1}

// Collector implements gisdb.MetricsCollector on a private Prometheus
// registry.
type Collector struct {
	registry *prometheus.Registry

	opens           *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	nearest         *prometheus.CounterVec
	nearestResults  prometheus.Counter
	nearestDuration prometheus.Histogram
	builds          *prometheus.CounterVec
	buildItems      prometheus.Counter
	buildBytes      prometheus.Counter
	buildDuration   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpLimited  prometheus.Counter
}

var _ gisdb.MetricsCollector = (*Collector)(nil)

// New returns a Collector. Go runtime and process metrics are registered
// alongside.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "opens_total",
			Help:      "Database opens by result.",
		}, []string{"result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lookups_total",
			Help:      "GetItem calls by result (hit, miss, error).",
		}, []string{"result"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "lookup_duration_seconds",
			Help:      "GetItem latency.",
			Buckets:   durationBuckets,
		}),
		nearest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "nearest_queries_total",
			Help:      "Nearest and NNearest calls by result.",
		}, []string{"result"}),
		nearestResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "nearest_results_total",
			Help:      "Neighbors returned by nearest queries.",
		}),
		nearestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "nearest_duration_seconds",
			Help:      "Nearest query latency.",
			Buckets:   durationBuckets,
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "builds_total",
			Help:      "Database builds by result.",
		}, []string{"result"}),
		buildItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_items_total",
			Help:      "Items written by successful builds.",
		}),
		buildBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "build_bytes_total",
			Help:      "Bytes written by successful builds.",
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Build latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		httpLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected by the rate limiter.",
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.opens, c.lookups, c.lookupDuration,
		c.nearest, c.nearestResults, c.nearestDuration,
		c.builds, c.buildItems, c.buildBytes, c.buildDuration,
		c.httpRequests, c.httpDuration, c.httpLimited,
	)
	return c
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordOpen implements gisdb.MetricsCollector.
func (c *Collector) RecordOpen(_ time.Duration, err error) {
	c.opens.WithLabelValues(result(err)).Inc()
}

// RecordLookup implements gisdb.MetricsCollector.
func (c *Collector) RecordLookup(d time.Duration, found bool, err error) {
	switch {
	case err != nil:
		c.lookups.WithLabelValues("error").Inc()
	case found:
		c.lookups.WithLabelValues("hit").Inc()
	default:
		c.lookups.WithLabelValues("miss").Inc()
	}
	c.lookupDuration.Observe(d.Seconds())
}

// RecordNearest implements gisdb.MetricsCollector.
func (c *Collector) RecordNearest(_, returned int, d time.Duration, err error) {
	c.nearest.WithLabelValues(result(err)).Inc()
	c.nearestResults.Add(float64(returned))
	c.nearestDuration.Observe(d.Seconds())
}

// RecordBuild implements gisdb.MetricsCollector.
func (c *Collector) RecordBuild(items int, bytes int64, d time.Duration, err error) {
	c.builds.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.buildItems.Add(float64(items))
		c.buildBytes.Add(float64(bytes))
	}
	c.buildDuration.Observe(d.Seconds())
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(route string, code int, d time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (c *Collector) RecordRateLimited() {
	c.httpLimited.Inc()
}
