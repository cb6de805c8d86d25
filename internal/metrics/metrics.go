// Package metrics exposes Prometheus instrumentation for the booking flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reservation engine.
type Metrics struct {
	// BookingsCreatedTotal is the total number of confirmed bookings.
	BookingsCreatedTotal prometheus.Counter

	// BookingsCancelledTotal is the total number of cancelled bookings.
	BookingsCancelledTotal prometheus.Counter

	// BookingsRejectedTotal counts rejected booking attempts by reason.
	BookingsRejectedTotal *prometheus.CounterVec

	// SlotReleaseFailuresTotal counts failed availability restores.
	SlotReleaseFailuresTotal prometheus.Counter
}

// Rejection reasons used as label values on BookingsRejectedTotal.
const (
	ReasonInvalidWindow = "invalid_window"
	ReasonOverlap       = "overlap"
	ReasonNoCapacity    = "no_capacity"
	ReasonNotFound      = "not_found"
)

// New creates and registers Prometheus metrics on the default registry.
func New(namespace string) *Metrics {
	return &Metrics{
		BookingsCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_created_total",
				Help:      "Total number of confirmed bookings",
			},
		),

		BookingsCancelledTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_cancelled_total",
				Help:      "Total number of cancelled bookings",
			},
		),

		BookingsRejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_rejected_total",
				Help:      "Total number of rejected booking attempts",
			},
			[]string{"reason"},
		),

		SlotReleaseFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slot_release_failures_total",
				Help:      "Total number of failed slot releases",
			},
		),
	}
}

// IncCreated increments the confirmed booking counter.
func (m *Metrics) IncCreated() {
	if m == nil {
		return
	}
	m.BookingsCreatedTotal.Inc()
}

// IncCancelled increments the cancelled booking counter.
func (m *Metrics) IncCancelled() {
	if m == nil {
		return
	}
	m.BookingsCancelledTotal.Inc()
}

// IncRejected increments the rejection counter for a given reason.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.BookingsRejectedTotal.WithLabelValues(reason).Inc()
}

// IncReleaseFailure increments the failed slot release counter.
func (m *Metrics) IncReleaseFailure() {
	if m == nil {
		return
	}
	m.SlotReleaseFailuresTotal.Inc()
}
