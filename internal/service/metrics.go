package service

import (
	"time"

	"yobot/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "yobot"

// Metrics holds the assistant's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	messages            *prometheus.CounterVec
	intents             *prometheus.CounterVec
	classifierFallbacks *prometheus.CounterVec
	handoffs            *prometheus.CounterVec
	deliveryFailures    *prometheus.CounterVec
	retrievalLatency    prometheus.Histogram
	llmLatency          *prometheus.HistogramVec
	catalogListings     prometheus.Gauge
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "conversation",
				Name:      "messages_total",
				Help:      "Inbound messages by the pipeline branch that answered them",
			},
			[]string{"route"},
		),
		intents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "classifier",
				Name:      "intents_total",
				Help:      "Classified intents by label",
			},
			[]string{"intent"},
		),
		classifierFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "classifier",
				Name:      "fallbacks_total",
				Help:      "Classifications that defaulted to OTHER, by reason",
			},
			[]string{"reason"},
		),
		handoffs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "handoff",
				Name:      "attempts_total",
				Help:      "Property id submissions by outcome",
			},
			[]string{"outcome"}, // notified, not_found, invalid_id, cancelled, delivery_failed
		),
		deliveryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "messaging",
				Name:      "delivery_failures_total",
				Help:      "Outbound messages that could not be delivered",
			},
			[]string{"recipient"}, // customer, agent
		),
		retrievalLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "retrieval",
				Name:      "latency_seconds",
				Help:      "Latency of query embedding plus similarity ranking",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "agent",
				Name:      "llm_latency_seconds",
				Help:      "Latency of chat completions",
				Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 10, 15, 30},
			},
			[]string{"status"},
		),
		catalogListings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "catalog",
				Name:      "listings",
				Help:      "Listings in the current catalog snapshot",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.intents,
		m.classifierFallbacks,
		m.handoffs,
		m.deliveryFailures,
		m.retrievalLatency,
		m.llmLatency,
		m.catalogListings,
	)
	return m
}

// Registry exposes the private registry for the HTTP handler
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Message counts an answered inbound message
func (m *Metrics) Message(route model.Route) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(route)).Inc()
}

// Intent counts a classification result
func (m *Metrics) Intent(intent model.Intent) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(string(intent)).Inc()
}

// ClassifierFallback counts a fail-closed classification
func (m *Metrics) ClassifierFallback(reason string) {
	if m == nil {
		return
	}
	m.classifierFallbacks.WithLabelValues(reason).Inc()
}

// Handoff counts a handoff outcome
func (m *Metrics) Handoff(outcome string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(outcome).Inc()
}

// DeliveryFailure counts an outbound message that failed
func (m *Metrics) DeliveryFailure(recipient string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(recipient).Inc()
}

// ObserveRetrieval records retrieval latency
func (m *Metrics) ObserveRetrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalLatency.Observe(d.Seconds())
}

// ObserveLLM records chat completion latency
func (m *Metrics) ObserveLLM(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmLatency.WithLabelValues(status).Observe(d.Seconds())
}

// CatalogSize records the current number of listings
func (m *Metrics) CatalogSize(n int) {
	if m == nil {
		return
	}
	m.catalogListings.Set(float64(n))
}
