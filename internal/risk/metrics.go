package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routerisk_assessments_total",
		Help: "Completed route risk assessments by grade",
	}, []string{"grade"})

	assessmentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routerisk_assessment_failures_total",
		Help: "Route risk assessments that did not produce a result, by reason",
	}, []string{"reason"})

	factorDefaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routerisk_factor_defaults_total",
		Help: "Factors that fell back to the neutral default, by factor and reason",
	}, []string{"factor", "reason"})

	assessmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "routerisk_assessment_duration_seconds",
		Help:    "Time to assess one route, including factor data fetches",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	confidenceLevels = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "routerisk_confidence_level",
		Help:    "Confidence level of completed assessments",
		Buckets: []float64{30, 40, 50, 60, 70, 80, 90, 95},
	})
)
