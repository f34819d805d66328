// Package metrics holds the prometheus collectors for the REST client and the gateway session.
// All methods are safe on a nil receiver so components can run without instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tether"

type Metrics struct {
	registry *prometheus.Registry

	RESTRequests     *prometheus.CounterVec
	RESTRateLimited  *prometheus.CounterVec
	RESTBackoff      prometheus.Counter
	GatewayFrames    *prometheus.CounterVec
	GatewayEvents    *prometheus.CounterVec
	GatewayHeartbeat prometheus.Counter
	GatewayState     *prometheus.GaugeVec
}

// New creates the collectors and registers them, with the Go runtime collectors,
// on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RESTRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rest",
				Name:      "requests_total",
				Help:      "REST attempts by method and response status (\"error\" for transport failures)",
			},
			[]string{"method", "status"},
		),
		RESTRateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rest",
				Name:      "rate_limited_total",
				Help:      "HTTP 429 responses received",
			},
			[]string{"method", "global"},
		),
		RESTBackoff: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rest",
				Name:      "backoff_seconds_total",
				Help:      "Cumulative time spent waiting on rate limits",
			},
		),
		GatewayFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "frames_total",
				Help:      "Gateway envelopes by direction and op code",
			},
			[]string{"direction", "op"},
		),
		GatewayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "dispatch_events_total",
				Help:      "Dispatch events by event name",
			},
			[]string{"event"},
		),
		GatewayHeartbeat: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "heartbeats_total",
				Help:      "Heartbeat frames sent",
			},
		),
		GatewayState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "state",
				Help:      "1 for the current session state, 0 otherwise",
			},
			[]string{"state"},
		),
	}
	m.registry.MustRegister(
		m.RESTRequests,
		m.RESTRateLimited,
		m.RESTBackoff,
		m.GatewayFrames,
		m.GatewayEvents,
		m.GatewayHeartbeat,
		m.GatewayState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RESTRequests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) ObserveRateLimit(method string, global bool, wait time.Duration) {
	if m == nil {
		return
	}
	m.RESTRateLimited.WithLabelValues(method, strconv.FormatBool(global)).Inc()
	m.RESTBackoff.Add(wait.Seconds())
}

func (m *Metrics) ObserveFrame(direction string, op int) {
	if m == nil {
		return
	}
	m.GatewayFrames.WithLabelValues(direction, strconv.Itoa(op)).Inc()
}

func (m *Metrics) ObserveDispatch(event string) {
	if m == nil {
		return
	}
	m.GatewayEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveHeartbeat() {
	if m == nil {
		return
	}
	m.GatewayHeartbeat.Inc()
}

// SetState flips the state gauge so exactly one of states reports 1.
func (m *Metrics) SetState(current string, states []string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.GatewayState.WithLabelValues(s).Set(v)
	}
}
