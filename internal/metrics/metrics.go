// Package metrics provides Prometheus instrumentation for frpanel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frpanel/internal/models"
)

const namespace = "frpanel"

var states = []models.ProcessState{
	models.StateStopped,
	models.StateStarting,
	models.StateRunning,
	models.StateErrored,
}

// Metrics holds every collector the panel exports.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Document edits
	DocumentOps *prometheus.CounterVec

	// Supervised client
	ClientState    *prometheus.GaugeVec
	ClientStarts   *prometheus.CounterVec
	ClientExits    *prometheus.CounterVec
	ClientLogLines *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, so several instances can
// coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		DocumentOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_operations_total",
				Help:      "Configuration document reads and edits by result",
			},
			[]string{"op", "result"},
		),
		ClientState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "client_state",
				Help:      "1 for the current state of the supervised client, 0 otherwise",
			},
			[]string{"state"},
		),
		ClientStarts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_starts_total",
				Help:      "Client start attempts by result",
			},
			[]string{"result"},
		),
		ClientExits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_exits_total",
				Help:      "Client exits by outcome",
			},
			[]string{"outcome"},
		),
		ClientLogLines: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_log_lines_total",
				Help:      "Log lines recorded by channel",
			},
			[]string{"channel"},
		),
	}
}

// SetState marks s as the only active client state.
func (m *Metrics) SetState(s models.ProcessState) {
	if m == nil {
		return
	}
	for _, st := range states {
		v := 0.0
		if st == s {
			v = 1
		}
		m.ClientState.WithLabelValues(string(st)).Set(v)
	}
}

func (m *Metrics) ObserveDocumentOp(op string, err error) {
	if m == nil {
		return
	}
	m.DocumentOps.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) ObserveStart(err error) {
	if m == nil {
		return
	}
	m.ClientStarts.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveExit(outcome string) {
	if m == nil {
		return
	}
	m.ClientExits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogLine(ch models.LogChannel) {
	if m == nil {
		return
	}
	m.ClientLogLines.WithLabelValues(string(ch)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
