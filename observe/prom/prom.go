// Package prom exports op diagnostics as prometheus metrics.
//
// The [Collector] reads an [ops.Tracker] at scrape time, so it adds no cost
// to dispatch.
package prom

import (
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "opcore"

// Collector is a prometheus.Collector over the per-op metrics of a loop.
type Collector struct {
	tracker   *ops.Tracker
	resources *resource.Table

	dispatched    *prometheus.Desc
	completed     *prometheus.Desc
	failed        *prometheus.Desc
	pending       *prometheus.Desc
	bytesSent     *prometheus.Desc
	bytesReceived *prometheus.Desc
	openResources *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

type (
	// Option configures a Collector.
	Option func(*options)

	options struct {
		constLabels prometheus.Labels
		resources   *resource.Table
		namespace   string
	}
)

// WithNamespace replaces [DefaultNamespace].
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

// WithConstLabels attaches labels to every metric, e.g. the loop id.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) { o.constLabels = labels }
}

// WithResources adds a gauge of open resources.
func WithResources(t *resource.Table) Option {
	return func(o *options) { o.resources = t }
}

// New returns a collector reading tracker.
func New(tracker *ops.Tracker, opts ...Option) *Collector {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(o.namespace, "", name), help, labels, o.constLabels)
	}
	c := &Collector{
		tracker:       tracker,
		resources:     o.resources,
		dispatched:    desc("op_dispatched_total", "Op calls dispatched.", "op", "mode"),
		completed:     desc("op_completed_total", "Op calls completed, successfully or not.", "op", "mode"),
		failed:        desc("op_failed_total", "Op calls completed with an error.", "op"),
		pending:       desc("op_pending", "Op calls dispatched and not yet completed.", "op"),
		bytesSent:     desc("op_bytes_sent_total", "Bytes passed into ops.", "op"),
		bytesReceived: desc("op_bytes_received_total", "Bytes returned from ops.", "op"),
	}
	if c.resources != nil {
		c.openResources = desc("resources_open", "Resources in the resource table.")
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatched
	ch <- c.completed
	ch <- c.failed
	ch <- c.pending
	ch <- c.bytesSent
	ch <- c.bytesReceived
	if c.openResources != nil {
		ch <- c.openResources
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, m := range c.tracker.Snapshot() {
		counter := func(d *prometheus.Desc, v uint64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), append([]string{name}, labels...)...)
		}
		counter(c.dispatched, m.DispatchedSync, "sync")
		counter(c.dispatched, m.DispatchedAsync, "async")
		counter(c.completed, m.CompletedSync, "sync")
		counter(c.completed, m.CompletedAsync, "async")
		counter(c.failed, m.Failed)
		counter(c.bytesSent, m.BytesSent)
		counter(c.bytesReceived, m.BytesReceived)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(m.Pending()), name)
	}
	if c.openResources != nil {
		ch <- prometheus.MustNewConstMetric(c.openResources, prometheus.GaugeValue, float64(c.resources.Len()))
	}
}
