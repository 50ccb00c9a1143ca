package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// VerificationsTotal counts cleanup claims by outcome: confirmed, rejected,
	// or the error kind that ended the claim (invalid_input, already_confirmed,
	// verification_failed and so on).
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litterquest",
		Subsystem: "verification",
		Name:      "claims_total",
		Help:      "Total number of cleanup claims processed, labeled by outcome.",
	}, []string{"outcome"})

	ConfidenceScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "litterquest",
		Subsystem: "verification",
		Name:      "confidence",
		Help:      "Confidence scores returned by the vision model for cleanup claims.",
		Buckets:   []float64{10, 25, 40, 50, 60, 75, 90, 100},
	})

	// ModelDurationSeconds is wall time of a single vision call.
	ModelDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "litterquest",
		Subsystem: "vision",
		Name:      "request_duration_seconds",
		Help:      "Duration of vision model calls, labeled by operation and result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"operation", "result"})

	ImagesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litterquest",
		Subsystem: "media",
		Name:      "images_dropped_total",
		Help:      "Total number of uploaded images dropped during normalisation.",
	})

	PointsAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "litterquest",
		Subsystem: "verification",
		Name:      "points_awarded_total",
		Help:      "Total number of points awarded for confirmed pickups.",
	})

	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "litterquest",
		Subsystem: "report",
		Name:      "created_total",
		Help:      "Total number of trash reports, labeled by result.",
	}, []string{"result"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			VerificationsTotal,
			ConfidenceScore,
			ModelDurationSeconds,
			ImagesDroppedTotal,
			PointsAwardedTotal,
			ReportsTotal,
		)
	})
}
