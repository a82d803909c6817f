// Package metrics exports dispatch and download counters in the Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
)

const namespace = "script_runtime"

// Collector records invocations (as a dispatcher.Observer) and download outcomes
// (as an events.Publisher) into its own Prometheus registry.
type Collector struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	downloads   *prometheus.CounterVec
	bytes       prometheus.Counter
}

// NewCollector creates a Collector. Go runtime and process collectors are included
// when withRuntime is true.
func NewCollector(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Completed invocations by namespace, operation and result code.",
		}, []string{"namespace", "operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Invocation latency including resolution and coercion.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"namespace", "operation"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download attempts by outcome.",
		}, []string{"status"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes written by successful downloads.",
		}),
	}
	c.registry.MustRegister(c.invocations, c.duration, c.downloads, c.bytes)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Observe implements dispatcher.Observer.
func (c *Collector) Observe(_ context.Context, inv *dispatcher.Invocation) {
	c.invocations.WithLabelValues(inv.Namespace, inv.Operation, inv.Code).Inc()
	c.duration.WithLabelValues(inv.Namespace, inv.Operation).Observe(inv.Duration.Seconds())
}

// PublishDownload implements events.Publisher.
func (c *Collector) PublishDownload(_ context.Context, event *events.DownloadEvent) error {
	c.downloads.WithLabelValues(event.Status).Inc()
	if event.Status == events.StatusWritten {
		c.bytes.Add(float64(event.Bytes))
	}
	return nil
}

// Handler serves the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}
