// Package metrics exposes Prometheus instruments for the scan pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts decoded codes by what the station did with them.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_scans_total",
		Help: "Decoded QR payloads handled by scan stations, by outcome.",
	}, []string{"outcome"})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_resolutions_total",
		Help: "Attendance state resolutions, by action and result.",
	}, []string{"action", "result"})

	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_resolve_duration_seconds",
		Help:    "Time spent resolving a single attendance action, including store round trips.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	RosterSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_roster_students",
		Help: "Students in the currently loaded scan roster.",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_push_notifications_total",
		Help: "Web push notifications attempted, by result.",
	}, []string{"result"})
)

// ObserveResolution records one resolver call.
func ObserveResolution(action, result string, started time.Time) {
	ResolutionsTotal.WithLabelValues(action, result).Inc()
	ResolveDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
}
