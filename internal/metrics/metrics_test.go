package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/shelflife/shelflife"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestObserveCalculation verifies outcomes map to the result label
func TestObserveCalculation(t *testing.T) {
	testCases := []struct {
		name   string
		result *shelflife.CalculationResult
		err    error
		labels []string
	}{
		{
			name:   "accept",
			result: &shelflife.CalculationResult{Origin: shelflife.OriginDomestic, Mode: shelflife.ModeAbsolute, CanAccept: true, CanRelease: true},
			labels: []string{"domestic", "absolute", "accept"},
		},
		{
			name:   "dc deadline passed",
			result: &shelflife.CalculationResult{Origin: shelflife.OriginImported, Mode: shelflife.ModeAbsolute, CanAccept: false, CanRelease: true},
			labels: []string{"imported", "absolute", "reject_dc"},
		},
		{
			name:   "store deadline passed",
			result: &shelflife.CalculationResult{Origin: shelflife.OriginDomestic, Mode: shelflife.ModeRelative, CanAccept: false, CanRelease: false},
			labels: []string{"domestic", "relative", "reject_dc"},
		},
		{
			name:   "error",
			err:    errors.New("invalid date"),
			labels: []string{"unknown", "unknown", "error"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			counter := Calculations.WithLabelValues(tc.labels...)
			before := testutil.ToFloat64(counter)

			ObserveCalculation(tc.result, tc.err)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("counter %v increased by %v, want 1", tc.labels, got)
			}
		})
	}
}

// TestObserveCalculationDerivedManufacture verifies the fallback counter
func TestObserveCalculationDerivedManufacture(t *testing.T) {
	before := testutil.ToFloat64(DerivedManufactureDates)

	ObserveCalculation(&shelflife.CalculationResult{Mode: shelflife.ModeRelative, ManufactureDateDerived: true, CanAccept: true, CanRelease: true}, nil)
	ObserveCalculation(&shelflife.CalculationResult{Mode: shelflife.ModeRelative, CanAccept: true, CanRelease: true}, nil)

	if got := testutil.ToFloat64(DerivedManufactureDates) - before; got != 1 {
		t.Errorf("DerivedManufactureDates increased by %v, want 1", got)
	}
}

// TestObserveRuleBookChange verifies the version gauge only moves on success
func TestObserveRuleBookChange(t *testing.T) {
	ObserveRuleBookChange("publish", 4, nil)
	if got := testutil.ToFloat64(ActiveRuleBookVersion); got != 4 {
		t.Errorf("ActiveRuleBookVersion = %v, want 4", got)
	}

	failed := RuleBookChanges.WithLabelValues("activate", "error")
	before := testutil.ToFloat64(failed)
	ObserveRuleBookChange("activate", 9, errors.New("not found"))

	if got := testutil.ToFloat64(ActiveRuleBookVersion); got != 4 {
		t.Errorf("failed change moved ActiveRuleBookVersion to %v", got)
	}
	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("error counter increased by %v, want 1", got)
	}
}

// TestObserveVerdict verifies findings are counted per check
func TestObserveVerdict(t *testing.T) {
	finding := ComplianceFindings.WithLabelValues("meat-origin-missing")
	failed := Verdicts.WithLabelValues("false")
	beforeFinding, beforeFailed := testutil.ToFloat64(finding), testutil.ToFloat64(failed)

	ObserveVerdict(false, []string{"meat-origin-missing", "manufacturer-phone-missing"})

	if got := testutil.ToFloat64(finding) - beforeFinding; got != 1 {
		t.Errorf("finding counter increased by %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("verdict counter increased by %v, want 1", got)
	}
}

// TestHandlerExposesMetrics verifies the scrape endpoint serves our collectors
func TestHandlerExposesMetrics(t *testing.T) {
	ObserveRequest("GET", "/api/v1/health", 200, 3*time.Millisecond)
	ObserveRequest("GET", "", 404, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`shelflife_http_request_duration_seconds_count{method="GET",route="/api/v1/health",status="200"}`,
		`route="unmatched"`,
		"shelflife_rulebook_active_version",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
