// Package promexport exposes connection metrics to Prometheus.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-grbl/connection"
	"github.com/arloliu/go-grbl/machine"
)

// DefaultNamespace is the metric name prefix used when none is configured.
const DefaultNamespace = "grbl"

// Source is the connection state read on every scrape.
type Source interface {
	Metrics() *connection.ConnectionMetrics
	IsConnected() bool
	ActiveState() machine.ActiveState
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(m *connection.ConnectionMetrics) float64
}

// Collector is a prometheus.Collector reading a connection's metrics at
// scrape time.
type Collector struct {
	src         Source
	counters    []counterDesc
	buffered    *prometheus.Desc
	connected   *prometheus.Desc
	activeState *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace   string
	constLabels prometheus.Labels
}

// WithNamespace sets the metric name prefix.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithConstLabels attaches constant labels, e.g. the machine name, to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) { o.constLabels = labels }
}

// NewCollector creates a Collector for src.
func NewCollector(src Source, opts ...Option) *Collector {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}

	name := func(n string) string { return prometheus.BuildFQName(o.namespace, "connection", n) }
	counter := func(n, help string, value func(m *connection.ConnectionMetrics) float64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(name(n), help, nil, o.constLabels),
			value: value,
		}
	}

	return &Collector{
		src: src,
		counters: []counterDesc{
			counter("received_bytes_total", "Bytes received from the controller.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.BytesRecvCount.Load()) }),
			counter("received_frames_total", "Frames extracted from the received bytes.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.FrameRecvCount.Load()) }),
			counter("sent_bytes_total", "Bytes written to the controller.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.BytesSendCount.Load()) }),
			counter("sent_frames_total", "Frames written to the controller.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.FrameSendCount.Load()) }),
			counter("write_errors_total", "Failed writes.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.WriteErrCount.Load()) }),
			counter("read_errors_total", "Transient read failures.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.ReadErrCount.Load()) }),
			counter("handler_panics_total", "Recovered frame handler panics.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.HandlerPanicCount.Load()) }),
			counter("opens_total", "Successful opens.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.OpenCount.Load()) }),
			counter("closes_total", "Close calls.",
				func(m *connection.ConnectionMetrics) float64 { return float64(m.CloseCount.Load()) }),
		},
		buffered: prometheus.NewDesc(name("buffered_bytes"),
			"Bytes held after the last complete frame.", nil, o.constLabels),
		connected: prometheus.NewDesc(name("connected"),
			"1 if the connection is open.", nil, o.constLabels),
		activeState: prometheus.NewDesc(prometheus.BuildFQName(o.namespace, "machine", "active_state"),
			"1 for the last reported controller state.", []string{"state"}, o.constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.buffered
	ch <- c.connected
	ch <- c.activeState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, cd.value(m))
	}
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(m.BufferedBytes.Load()))

	connected := 0.0
	if c.src.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)

	if state := c.src.ActiveState(); state != machine.Unknown {
		ch <- prometheus.MustNewConstMetric(c.activeState, prometheus.GaugeValue, 1, state.String())
	}
}
