// Package metrics provides Prometheus collectors for the levy engine.
// Business metrics describe the amounts being estimated; operational
// metrics describe the calculations themselves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the application.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// amountBuckets spans single shortfalls up to large monthly levies (KRW).
var amountBuckets = prometheus.ExponentialBuckets(1_000_000, 4, 10)

// =============================================================================
// BUSINESS METRICS
// =============================================================================

// LevyEstimated tracks estimated monthly levy amounts.
var LevyEstimated = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "levy",
	Name:      "estimated_amount",
	Help:      "Estimated monthly levy per calculation",
	Buckets:   amountBuckets,
})

// LevyTierTotal counts levy calculations by the tier they landed in.
var LevyTierTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "levy",
	Name:      "tier_total",
	Help:      "Levy calculations by employment-rate tier",
}, []string{"tier"})

// ShortfallHeadcount tracks the unmet obligation per calculation.
var ShortfallHeadcount = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "levy",
	Name:      "shortfall_headcount",
	Help:      "Obligated minus recognized headcount per calculation",
	Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
})

// ReductionGranted tracks the maximum linkage reduction per calculation.
var ReductionGranted = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "reduction",
	Name:      "granted_amount",
	Help:      "Maximum linkage reduction per calculation",
	Buckets:   amountBuckets,
})

// ReductionUnallocated counts remainder currency left by floored allocations.
var ReductionUnallocated = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "reduction",
	Name:      "unallocated_amount_total",
	Help:      "Currency left unallocated after per-supplier floors",
})

// IncentiveEligible tracks eligible headcount per incentive selection.
var IncentiveEligible = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "incentive",
	Name:      "eligible_headcount",
	Help:      "Employees eligible for incentive per selection",
	Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
})

// =============================================================================
// OPERATIONAL METRICS
// =============================================================================

// CalculationsTotal counts served calculations by kind.
var CalculationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "engine",
	Name:      "calculations_total",
	Help:      "Calculations served by kind",
}, []string{"kind"})

// CalculationErrorsTotal counts failed calculations by kind and reason.
var CalculationErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "engine",
	Name:      "calculation_errors_total",
	Help:      "Failed calculations by kind and reason",
}, []string{"kind", "reason"})

// CalculationDurationSeconds tracks time spent per calculation.
var CalculationDurationSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "engine",
	Name:      "calculation_duration_seconds",
	Help:      "Time taken per calculation including config resolution",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
}, []string{"kind"})

// RunRecordFailuresTotal counts calculation runs that could not be recorded.
var RunRecordFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "engine",
	Name:      "run_record_failures_total",
	Help:      "Calculation runs that failed to persist",
})

// ProvisionedYears tracks how many year configs the store holds.
var ProvisionedYears = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "engine",
	Name:      "provisioned_years",
	Help:      "Year configurations currently provisioned",
})
