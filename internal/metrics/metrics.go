package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wslive"

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler for the metrics endpoint.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Server records server connection and heartbeat metrics.
type Server struct {
	active     prometheus.Gauge
	registered prometheus.Counter
	rejected   prometheus.Counter
	evicted    prometheus.Counter
	probes     prometheus.Counter
	messages   prometheus.Counter
}

// NewServer creates server metrics and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Number of currently registered connections",
		}),
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_registered_total",
			Help:      "Total connections registered",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "registration_rejected_total",
			Help:      "Total registrations rejected as duplicates",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_evicted_total",
			Help:      "Total connections terminated for missing a heartbeat",
		}),
		probes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "heartbeat_probes_total",
			Help:      "Total ping probes sent",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "messages_received_total",
			Help:      "Total data frames received from clients",
		}),
	}

	reg.MustRegister(
		m.active,
		m.registered,
		m.rejected,
		m.evicted,
		m.probes,
		m.messages,
	)
	return m
}

func (m *Server) ConnRegistered() {
	if m == nil {
		return
	}
	m.registered.Inc()
	m.active.Inc()
}

func (m *Server) ConnUnregistered() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Server) RegistrationRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Server) ConnEvicted() {
	if m == nil {
		return
	}
	m.evicted.Inc()
}

func (m *Server) ProbeSent() {
	if m == nil {
		return
	}
	m.probes.Inc()
}

func (m *Server) MessageReceived() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

// Client records reconnecting client metrics.
type Client struct {
	attempts   prometheus.Counter
	reconnects prometheus.Counter
	open       prometheus.Gauge
	queued     prometheus.Gauge
}

// NewClient creates client metrics and registers them with reg.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "connect_attempts_total",
			Help:      "Total connection attempts started",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "reconnects_scheduled_total",
			Help:      "Total reconnects scheduled after an unexpected close",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "open",
			Help:      "1 while the client connection is open",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "events_queued",
			Help:      "Lifecycle events waiting for the consumer",
		}),
	}

	reg.MustRegister(m.attempts, m.reconnects, m.open, m.queued)
	return m
}

func (m *Client) AttemptStarted() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Client) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Client) SetOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.open.Set(1)
	} else {
		m.open.Set(0)
	}
}

// SetQueued records the number of undelivered lifecycle events.
func (m *Client) SetQueued(depth int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(depth))
}
