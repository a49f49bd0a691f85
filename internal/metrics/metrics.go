// Package metrics exposes the node's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorcluster"

// Command results.
const (
	ResultApplied   = "applied"
	ResultMalformed = "malformed"
	ResultRange     = "out_of_range"
	ResultUnknown   = "unknown_topic"
)

// Metrics holds every instrument the node updates.
type Metrics struct {
	Commands          *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	Heartbeats        prometheus.Counter
	LoopIterations    prometheus.Counter
	InboxDropped      prometheus.Counter

	Connected          prometheus.Gauge
	TemperatureCelsius prometheus.Gauge
	Presence           prometheus.Gauge
	AlertActive        prometheus.Gauge
	IndicatorBlinking  prometheus.Gauge
	UptimeSeconds      prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound commands by kind and result.",
		}, []string{"kind", "result"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Broker connection attempts.",
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat messages published.",
		}),
		LoopIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Scheduler steps executed.",
		}),
		InboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_dropped_total",
			Help:      "Inbound messages discarded because the buffer was full.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_connected",
			Help:      "1 while the broker session is up.",
		}),
		TemperatureCelsius: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last valid probe reading.",
		}),
		Presence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence",
			Help:      "1 while the radar reports presence.",
		}),
		AlertActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while an alert pulse train runs.",
		}),
		IndicatorBlinking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator_blinking",
			Help:      "1 while the status LED blinks.",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the scheduler started.",
		}),
	}

	reg.MustRegister(
		m.Commands,
		m.ReconnectAttempts,
		m.Heartbeats,
		m.LoopIterations,
		m.InboxDropped,
		m.Connected,
		m.TemperatureCelsius,
		m.Presence,
		m.AlertActive,
		m.IndicatorBlinking,
		m.UptimeSeconds,
	)

	return m
}

// ObserveCommand counts one routed command.
func (m *Metrics) ObserveCommand(kind, result string) {
	m.Commands.WithLabelValues(kind, result).Inc()
}

// SetBool sets g to 1 or 0.
func SetBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
