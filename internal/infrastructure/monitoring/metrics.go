package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the console pipeline.
//
// Every method is safe to call on a nil *Metrics so components can take
// metrics as an optional dependency.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Console pipeline metrics
	ConsoleMessages  *prometheus.CounterVec
	MessagesSent     prometheus.Counter
	SendFailures     prometheus.Counter
	SendsShed        prometheus.Counter
	Truncations      *prometheus.CounterVec
	Prompts          prometheus.Counter
	PendingMessages  prometheus.Gauge
	ForwardedBytes   *prometheus.CounterVec
	WatcherStates    *prometheus.CounterVec
	TransportBreaker prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	snapshot struct {
		sent      atomic.Int64
		failed    atomic.Int64
		truncated atomic.Int64
		forwarded atomic.Int64
	}
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	MessagesSent   int64 `json:"messages_sent"`
	SendFailures   int64 `json:"send_failures"`
	Truncations    int64 `json:"truncations"`
	ForwardedBytes int64 `json:"forwarded_bytes"`
}

// NewMetrics creates a metrics collector registered on reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ConsoleMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_messages_total",
				Help: "Console messages appended to the buffer",
			},
			[]string{"channel"},
		),
		MessagesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_messages_sent_total",
				Help: "Messages delivered to the outbound pipe",
			},
		),
		SendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_send_failures_total",
				Help: "Outbound sends that failed and were dropped",
			},
		),
		SendsShed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_sends_shed_total",
				Help: "Outbound sends dropped while the transport breaker was open",
			},
		),
		Truncations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_truncations_total",
				Help: "Console writes truncated to the size limit",
			},
			[]string{"channel"},
		),
		Prompts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "console_stdin_prompts_total",
				Help: "Input prompts issued to the consumer",
			},
		),
		PendingMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_buffer_pending",
				Help: "Messages waiting in the console buffer",
			},
		),
		ForwardedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_fd_forwarded_bytes_total",
				Help: "Raw bytes read from redirected file descriptors",
			},
			[]string{"stream"},
		),
		WatcherStates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_watcher_transitions_total",
				Help: "File descriptor watcher state transitions",
			},
			[]string{"stream", "state"},
		),
		TransportBreaker: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_transport_breaker_state",
				Help: "Transport circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_ws_connections",
				Help: "Attached websocket clients",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_ws_messages_total",
				Help: "Websocket frames by direction and type",
			},
			[]string{"direction", "type"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEnqueued records a console message appended to the buffer
func (m *Metrics) RecordEnqueued(channel string, pending int) {
	if m == nil {
		return
	}
	m.ConsoleMessages.WithLabelValues(channel).Inc()
	m.PendingMessages.Set(float64(pending))
}

// SetPending records the current buffer depth
func (m *Metrics) SetPending(pending int) {
	if m == nil {
		return
	}
	m.PendingMessages.Set(float64(pending))
}

// RecordSend records the outcome of one outbound send
func (m *Metrics) RecordSend(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendFailures.Inc()
		m.snapshot.failed.Add(1)
		return
	}
	m.MessagesSent.Inc()
	m.snapshot.sent.Add(1)
}

// RecordShed records a send dropped by the open breaker
func (m *Metrics) RecordShed() {
	if m == nil {
		return
	}
	m.SendsShed.Inc()
	m.snapshot.failed.Add(1)
}

// RecordTruncation records a write cut to the size limit
func (m *Metrics) RecordTruncation(channel string) {
	if m == nil {
		return
	}
	m.Truncations.WithLabelValues(channel).Inc()
	m.snapshot.truncated.Add(1)
}

// RecordPrompt records an input prompt
func (m *Metrics) RecordPrompt() {
	if m == nil {
		return
	}
	m.Prompts.Inc()
}

// RecordForwarded records raw bytes read from a watched descriptor
func (m *Metrics) RecordForwarded(stream string, n int) {
	if m == nil {
		return
	}
	m.ForwardedBytes.WithLabelValues(stream).Add(float64(n))
	m.snapshot.forwarded.Add(int64(n))
}

// RecordWatcherState records a watcher lifecycle transition
func (m *Metrics) RecordWatcherState(stream, state string) {
	if m == nil {
		return
	}
	m.WatcherStates.WithLabelValues(stream, state).Inc()
}

// SetBreakerState records the transport breaker state
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.TransportBreaker.Set(float64(state))
}

// RecordWSMessage records a websocket frame
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments active websocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements active websocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// GetSnapshot returns the current counter values
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		MessagesSent:   m.snapshot.sent.Load(),
		SendFailures:   m.snapshot.failed.Load(),
		Truncations:    m.snapshot.truncated.Load(),
		ForwardedBytes: m.snapshot.forwarded.Load(),
	}
}
