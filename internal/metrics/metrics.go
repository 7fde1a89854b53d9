// Package metrics exposes Prometheus collectors for the shelf-life service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/liamcoop/shelflife/shelflife"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shelflife"

// ─── Engine ─────────────────────────────────────────────────────────────────

// Calculations counts engine invocations by origin, mode and outcome.
// result is one of accept, reject_dc, reject_store or error.
var Calculations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "calculations_total",
	Help:      "Total acceptance calculations by origin, mode and result.",
}, []string{"origin", "mode", "result"})

// DerivedManufactureDates counts calculations that fell back to expiry - T + 1
var DerivedManufactureDates = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "derived_manufacture_dates_total",
	Help:      "Total relative-mode calculations without a label manufacture date.",
})

// ─── Rule book ──────────────────────────────────────────────────────────────

// ActiveRuleBookVersion reports the version serving calculations
var ActiveRuleBookVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "rulebook",
	Name:      "active_version",
	Help:      "Version of the active rule book.",
})

// RuleBookChanges counts publish and activate operations by outcome
var RuleBookChanges = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "rulebook",
	Name:      "changes_total",
	Help:      "Total rule book publish/activate operations.",
}, []string{"operation", "result"})

// ─── Compliance ─────────────────────────────────────────────────────────────

// ComplianceFindings counts flagged or errored checks by check ID
var ComplianceFindings = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "compliance",
	Name:      "findings_total",
	Help:      "Total compliance findings by check.",
}, []string{"check"})

// Verdicts counts label inspections by outcome
var Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "compliance",
	Name:      "verdicts_total",
	Help:      "Total label inspections by verdict.",
}, []string{"passed"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequestDuration tracks request latency per route pattern
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by method, route and status.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"method", "route", "status"})

// ObserveCalculation records one engine outcome; err marks a failed calculation
func ObserveCalculation(result *shelflife.CalculationResult, err error) {
	if err != nil || result == nil {
		Calculations.WithLabelValues("unknown", "unknown", "error").Inc()
		return
	}

	outcome := "accept"
	switch {
	case !result.CanAccept:
		outcome = "reject_dc"
	case !result.CanRelease:
		outcome = "reject_store"
	}
	Calculations.WithLabelValues(result.Origin.String(), result.Mode.String(), outcome).Inc()

	if result.ManufactureDateDerived {
		DerivedManufactureDates.Inc()
	}
}

// ObserveRuleBookChange records a publish or activate and, on success, the new version
func ObserveRuleBookChange(operation string, version int, err error) {
	if err != nil {
		RuleBookChanges.WithLabelValues(operation, "error").Inc()
		return
	}
	RuleBookChanges.WithLabelValues(operation, "ok").Inc()
	ActiveRuleBookVersion.Set(float64(version))
}

// ObserveVerdict records an inspection outcome and its findings
func ObserveVerdict(passed bool, findingIDs []string) {
	Verdicts.WithLabelValues(strconv.FormatBool(passed)).Inc()
	for _, id := range findingIDs {
		ComplianceFindings.WithLabelValues(id).Inc()
	}
}

// ObserveRequest records one HTTP request
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
