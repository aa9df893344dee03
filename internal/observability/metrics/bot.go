package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BotMetrics aggregates the conversation-facing counters: inbound events by
// kind and outcome, outbound Bot API calls by method and status, and the
// number of live sessions.
type BotMetrics struct {
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	sendTotal     *prometheus.CounterVec
}

func NewBotMetrics(service string, sessionCount func() int) *BotMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kutubxona",
			Subsystem: "bot",
			Name:      "events_total",
			Help:      "Inbound events by kind and outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind", "outcome"},
	)
	eventDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kutubxona",
			Subsystem: "bot",
			Name:      "event_duration_seconds",
			Help:      "Event handling duration in seconds by kind.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"kind"},
	)
	sendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kutubxona",
			Subsystem: "bot",
			Name:      "api_send_total",
			Help:      "Outbound Bot API calls by method and status.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"method", "status"},
	)
	activeSessions := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "kutubxona",
			Subsystem: "bot",
			Name:      "active_sessions",
			Help:      "Number of sessions held in memory.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		func() float64 { return float64(sessionCount()) },
	)

	registry.MustRegister(eventsTotal, eventDuration, sendTotal, activeSessions)

	return &BotMetrics{
		registry:      registry,
		eventsTotal:   eventsTotal,
		eventDuration: eventDuration,
		sendTotal:     sendTotal,
	}
}

func (m *BotMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *BotMetrics) ObserveEvent(kind string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.eventsTotal.WithLabelValues(kind, outcome).Inc()
	m.eventDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *BotMetrics) ObserveSend(method string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sendTotal.WithLabelValues(method, status).Inc()
}
