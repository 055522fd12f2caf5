// Package metrics registers the prometheus collectors exposed on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts submissions by outcome; result is
	// "accepted" or the rejection code.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_submissions_total",
		Help: "Attendance submissions by result.",
	}, []string{"result"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_started_total",
		Help: "Sessions started.",
	})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_expired_total",
		Help: "Sessions deactivated by the expiry sweep.",
	})

	// RetentionPurged counts purged rows; kind is "sessions" or
	// "records".
	RetentionPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_retention_purged_total",
		Help: "Rows removed by the retention sweep.",
	}, []string{"kind"})
)
