package mqtt

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
// Every call for a given name must use the same set of label keys.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
}

// Histogram tracks the distribution of values.
type Histogram interface {
	Observe(value float64)
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return noOpMetric{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return noOpMetric{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return noOpMetric{}
}

type noOpMetric struct{}

func (noOpMetric) Inc()              {}
func (noOpMetric) Dec()              {}
func (noOpMetric) Add(_ float64)     {}
func (noOpMetric) Sub(_ float64)     {}
func (noOpMetric) Set(_ float64)     {}
func (noOpMetric) Observe(_ float64) {}

// PrometheusMetrics implements Metrics with Prometheus collectors.
// Collectors are created and registered on first use of a name.
type PrometheusMetrics struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics creates metrics registered with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Counter returns the counter for name and labels.
func (p *PrometheusMetrics) Counter(name string, labels MetricLabels) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: metricHelp(name)}, labelNames(labels))
		vec = registerOrExisting(p.registerer, vec)
		p.counters[name] = vec
	}
	return vec.With(prometheus.Labels(labels))
}

// Gauge returns the gauge for name and labels.
func (p *PrometheusMetrics) Gauge(name string, labels MetricLabels) Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: metricHelp(name)}, labelNames(labels))
		vec = registerOrExisting(p.registerer, vec)
		p.gauges[name] = vec
	}
	return vec.With(prometheus.Labels(labels))
}

// Histogram returns the histogram for name and labels.
func (p *PrometheusMetrics) Histogram(name string, labels MetricLabels) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    metricHelp(name),
			Buckets: prometheus.DefBuckets,
		}, labelNames(labels))
		vec = registerOrExisting(p.registerer, vec)
		p.histograms[name] = vec
	}
	return vec.With(prometheus.Labels(labels))
}

// registerOrExisting registers c, returning the collector already registered
// under the same description when there is one. Like prometheus.MustRegister
// it panics on any other registration error.
func registerOrExisting[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

func labelNames(labels MetricLabels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func metricHelp(name string) string {
	if help, ok := metricHelpText[name]; ok {
		return help
	}
	return name
}

// Standard metric names for MQTT clients.
const (
	// MetricPacketsSent is the total number of packets sent.
	MetricPacketsSent = "mqtt_client_packets_sent_total"

	// MetricPacketsReceived is the total number of packets received.
	MetricPacketsReceived = "mqtt_client_packets_received_total"

	// MetricBytesSent is the total bytes sent.
	MetricBytesSent = "mqtt_client_bytes_sent_total"

	// MetricBytesReceived is the total bytes received.
	MetricBytesReceived = "mqtt_client_bytes_received_total"

	// MetricPending is the current number of unacknowledged packets.
	MetricPending = "mqtt_client_pending_packets"

	// MetricTimeouts is the total number of operations that ran out of budget.
	MetricTimeouts = "mqtt_client_timeouts_total"

	// MetricAckLatency is the time from sending a packet to its final acknowledgment.
	MetricAckLatency = "mqtt_client_ack_latency_seconds"

	// MetricConnections is the total number of successful connects.
	MetricConnections = "mqtt_client_connections_total"
)

var metricHelpText = map[string]string{
	MetricPacketsSent:     "The total number of sent MQTT packets",
	MetricPacketsReceived: "The total number of received MQTT packets",
	MetricBytesSent:       "The total number of sent MQTT bytes",
	MetricBytesReceived:   "The total number of received MQTT bytes",
	MetricPending:         "The number of packets waiting for acknowledgment",
	MetricTimeouts:        "The total number of operations that timed out",
	MetricAckLatency:      "Time from sending a packet to its final acknowledgment",
	MetricConnections:     "The total number of accepted connections",
}

// Standard metric labels.
const (
	// LabelPacketType is the packet type label.
	LabelPacketType = "packet_type"

	// LabelOperation is the operation label.
	LabelOperation = "operation"
)

// clientMetrics provides convenience methods for the client's metrics.
type clientMetrics struct {
	metrics Metrics
}

func (m clientMetrics) packetSent(t PacketType, n int) {
	m.metrics.Counter(MetricPacketsSent, MetricLabels{LabelPacketType: t.String()}).Inc()
	m.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
}

func (m clientMetrics) packetReceived(t PacketType, n int) {
	m.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelPacketType: t.String()}).Inc()
	m.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

func (m clientMetrics) pending(n int) {
	m.metrics.Gauge(MetricPending, nil).Set(float64(n))
}

func (m clientMetrics) timeout(op string) {
	m.metrics.Counter(MetricTimeouts, MetricLabels{LabelOperation: op}).Inc()
}

func (m clientMetrics) acknowledged(t PacketType, d time.Duration) {
	m.metrics.Histogram(MetricAckLatency, MetricLabels{LabelPacketType: t.String()}).Observe(d.Seconds())
}

func (m clientMetrics) connected() {
	m.metrics.Counter(MetricConnections, nil).Inc()
}
