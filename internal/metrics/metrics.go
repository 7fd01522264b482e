// Package metrics owns the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	WebAuthnCeremoniesTotal    *prometheus.CounterVec
	RemindersEmittedTotal      *prometheus.CounterVec
	ReminderDeliveryFailures   prometheus.Counter
	RecurrenceAdvancesTotal    *prometheus.CounterVec
	GRPCRequestsTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		WebAuthnCeremoniesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webauthn_ceremonies_total",
				Help: "WebAuthn ceremonies by kind and outcome.",
			},
			[]string{"ceremony", "result"},
		),
		RemindersEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_emitted_total",
				Help: "Notifications emitted by the reminder scheduler.",
			},
			[]string{"kind"},
		),
		ReminderDeliveryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reminder_delivery_failures_total",
				Help: "Notifications the scheduler failed to deliver.",
			},
		),
		RecurrenceAdvancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recurrence_advances_total",
				Help: "Due-date advances of recurring tasks by rule type.",
			},
			[]string{"type"},
		),
		GRPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grpc_requests_total",
				Help: "Unary gRPC calls on the ops listener.",
			},
			[]string{"method", "code"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.WebAuthnCeremoniesTotal,
		m.RemindersEmittedTotal,
		m.ReminderDeliveryFailures,
		m.RecurrenceAdvancesTotal,
		m.GRPCRequestsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Ceremony records a WebAuthn ceremony outcome.
func (m *Metrics) Ceremony(ceremony, result string) {
	if m == nil {
		return
	}
	m.WebAuthnCeremoniesTotal.WithLabelValues(ceremony, result).Inc()
}

// ReminderEmitted counts an emitted notification of the given kind.
func (m *Metrics) ReminderEmitted(kind string) {
	if m == nil {
		return
	}
	m.RemindersEmittedTotal.WithLabelValues(kind).Inc()
}

// DeliveryFailed counts a notification that could not be delivered.
func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.ReminderDeliveryFailures.Inc()
}

// RecurrenceAdvanced counts a due-date advance for a rule type.
func (m *Metrics) RecurrenceAdvanced(kind string) {
	if m == nil {
		return
	}
	m.RecurrenceAdvancesTotal.WithLabelValues(kind).Inc()
}

// GRPCRequest counts a unary call by full method and status code.
func (m *Metrics) GRPCRequest(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}
