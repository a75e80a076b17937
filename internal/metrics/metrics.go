// Package metrics holds the Prometheus collectors exported by the alarm daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Scheduling metrics
	AlarmsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wakealarm_alarms_scheduled_total",
			Help: "Total alarms accepted by schedule",
		},
	)

	ArmAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_arm_attempts_total",
			Help: "Host wake registrations by result and timer class",
		},
		[]string{"result", "reliability"},
	)

	ArmedAlarms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wakealarm_armed_alarms",
			Help: "Alarms currently armed",
		},
	)

	ReducedReliability = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wakealarm_reduced_reliability",
			Help: "1 when the last registration fell back to an inexact timer",
		},
	)

	// Session metrics
	FiresReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_fires_received_total",
			Help: "Fire callbacks delivered by the host",
		},
		[]string{"disposition"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wakealarm_active_sessions",
			Help: "Sessions currently firing, queued or playing",
		},
	)

	SessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_session_outcomes_total",
			Help: "Finished sessions by outcome",
		},
		[]string{"outcome"},
	)

	RingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wakealarm_ring_duration_seconds",
			Help:    "Time from playback start to session end",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// Playback metrics
	LayerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_layer_failures_total",
			Help: "Playback layer failures by layer",
		},
		[]string{"layer"},
	)

	DegradedSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wakealarm_degraded_sessions_total",
			Help: "Sessions that fell back to the primitive signal",
		},
	)

	FocusLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wakealarm_focus_lost_total",
			Help: "Times the exclusive alarm channel was revoked or denied",
		},
	)

	HoldCeilingReached = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wakealarm_hold_ceiling_reached_total",
			Help: "CPU holds released by the engine ceiling",
		},
	)

	// Persistence and recovery metrics
	PersistenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_persistence_errors_total",
			Help: "Store operations that failed",
		},
		[]string{"operation"},
	)

	ResyncResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_resync_alarms_total",
			Help: "Alarms processed by recovery by result",
		},
		[]string{"result"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wakealarm_events_published_total",
			Help: "Lifecycle events published by sink and result",
		},
		[]string{"sink", "result"},
	)
)

func init() { //nolint:gochecknoinits // Collectors must exist before any component records.
	prometheus.MustRegister(
		AlarmsScheduled,
		ArmAttempts,
		ArmedAlarms,
		ReducedReliability,
		FiresReceived,
		ActiveSessions,
		SessionOutcomes,
		RingDuration,
		LayerFailures,
		DegradedSessions,
		FocusLost,
		HoldCeilingReached,
		PersistenceErrors,
		ResyncResults,
		EventsPublished,
	)
}
