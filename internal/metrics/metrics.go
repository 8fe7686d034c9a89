// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's counters. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	reservations  *prometheus.CounterVec
	expired       prometheus.Counter
	sponsorships  *prometheus.CounterVec
	magicLinks    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "reservations_total",
			Help:      "Reservation attempts by outcome.",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "reservations_expired_total",
			Help:      "Reservations moved to expired, lazily or by the sweeper.",
		}),
		sponsorships: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "sponsorship_transitions_total",
			Help:      "Sponsorship status changes by target status.",
		}, []string{"status"}),
		magicLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "magic_links_total",
			Help:      "Magic link requests and validations by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "rate_limited_total",
			Help:      "Requests blocked by the rate limiter by dimension.",
		}, []string{"dimension"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlink",
			Name:      "notifications_total",
			Help:      "Notification sends by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.reservations, m.expired, m.sponsorships, m.magicLinks, m.rateLimited, m.notifications,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Expired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Metrics) Sponsorship(status string) {
	if m == nil {
		return
	}
	m.sponsorships.WithLabelValues(status).Inc()
}

func (m *Metrics) MagicLink(outcome string) {
	if m == nil {
		return
	}
	m.magicLinks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimited(dimension string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(dimension).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
