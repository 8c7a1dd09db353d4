package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "somfy_bridge"

// Poll results recorded by PollsTotal.
const (
	pollOK       = "ok"
	pollError    = "error"
	pollExpired  = "expired"
	pollNoListen = "no_listener"
)

// Metrics holds the Prometheus collectors for one bridge. Each Metrics owns
// its registry so that several bridges (or tests) can coexist.
type Metrics struct {
	Registry *prometheus.Registry

	PollsTotal         *prometheus.CounterVec
	EventsTotal        *prometheus.CounterVec
	CommandsTotal      *prometheus.CounterVec
	RegistrationsTotal prometheus.Counter
	ListenerActive     prometheus.Gauge
	LastPollTimestamp  prometheus.Gauge
	DevicesTracked     prometheus.Gauge
}

// NewMetrics creates and registers the bridge metrics on a fresh registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: reg,
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "polls_total",
				Help:      "Event fetches by result",
			},
			[]string{"result"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_total",
				Help:      "Gateway events received by event name",
			},
			[]string{"name"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "commands_total",
				Help:      "Commands received over MQTT by ack status",
			},
			[]string{"status"},
		),
		RegistrationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "listener_registrations_total",
				Help:      "Event listener registrations performed",
			},
		),
		ListenerActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "listener_active",
				Help:      "Whether an event listener is registered (1=yes, 0=no)",
			},
		),
		LastPollTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_poll_timestamp_seconds",
				Help:      "Unix time of the last successful event fetch",
			},
		),
		DevicesTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "devices_tracked",
				Help:      "Devices with cached state",
			},
		),
	}

	reg.MustRegister(
		m.PollsTotal,
		m.EventsTotal,
		m.CommandsTotal,
		m.RegistrationsTotal,
		m.ListenerActive,
		m.LastPollTimestamp,
		m.DevicesTracked,
	)
	return m
}

// RecordPoll counts one event fetch.
func (m *Metrics) RecordPoll(result string) {
	m.PollsTotal.WithLabelValues(result).Inc()
}

// RecordEvent counts one received event.
func (m *Metrics) RecordEvent(name string) {
	m.EventsTotal.WithLabelValues(name).Inc()
}

// RecordCommand counts one handled command.
func (m *Metrics) RecordCommand(status AckStatus) {
	m.CommandsTotal.WithLabelValues(string(status)).Inc()
}

// SetListenerActive updates the listener gauge.
func (m *Metrics) SetListenerActive(active bool) {
	if active {
		m.ListenerActive.Set(1)
	} else {
		m.ListenerActive.Set(0)
	}
}
