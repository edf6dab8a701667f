// Package metrics defines the Prometheus counters propdesk records for its
// request pipeline and realtime channel. Counters are registered on an
// injected Registerer so tests can use a private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "propdesk"

// Metrics groups every propdesk collector
type Metrics struct {
	// RequestsTotal counts finished pipeline calls.
	// Label:
	//   - class: "ok" or the failure classification (e.g. "session_expired")
	RequestsTotal *prometheus.CounterVec

	// ExpiryAbsorbedTotal counts session-expired failures that were folded
	// into an already pending teardown, or that carried a stale credential.
	ExpiryAbsorbedTotal prometheus.Counter

	// TeardownsTotal counts expiry episodes by outcome.
	// Label:
	//   - outcome: "fired" or "cancelled"
	TeardownsTotal *prometheus.CounterVec

	// RealtimeEventsTotal counts push events written into a slot.
	// Label:
	//   - slot: the notification slot name
	RealtimeEventsTotal *prometheus.CounterVec

	// RealtimeDroppedTotal counts inbound frames that did not reach a slot.
	// Label:
	//   - reason: "unknown_kind" or "malformed"
	RealtimeDroppedTotal *prometheus.CounterVec
}

// New creates and registers the collectors on reg. A nil reg builds
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of API calls, labelled by outcome class.",
			},
			[]string{"class"},
		),
		ExpiryAbsorbedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expiry_absorbed_total",
				Help:      "Session-expired failures absorbed without a new notice or teardown.",
			},
		),
		TeardownsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "teardowns_total",
				Help:      "Expiry episodes, labelled by whether the teardown fired or was cancelled.",
			},
			[]string{"outcome"},
		),
		RealtimeEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_events_total",
				Help:      "Push events stored into a notification slot.",
			},
			[]string{"slot"},
		),
		RealtimeDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "realtime_dropped_total",
				Help:      "Inbound realtime frames that were dropped.",
			},
			[]string{"reason"},
		),
	}
}

// Discard returns collectors that are not registered anywhere
func Discard() *Metrics {
	return New(nil)
}
