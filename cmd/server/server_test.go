package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/shelflife/compliance"
	"github.com/liamcoop/shelflife/rulebook"
	"github.com/liamcoop/shelflife/shelflife"
	"github.com/shopspring/decimal"
)

// newTestServer builds a server over memory stores with the clock fixed at 2024-12-01
func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	manager := rulebook.NewManager(rulebook.NewMemoryStore(),
		shelflife.WithClock(shelflife.FixedDay(shelflife.MustParseDate("2024-12-01"))),
		shelflife.WithLocation(time.UTC),
	)
	if err := manager.Load(ctx); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	store := compliance.NewInMemoryCheckStore()
	if _, err := compliance.SeedDefaults(ctx, store); err != nil {
		t.Fatalf("SeedDefaults() failed: %v", err)
	}
	checks, err := compliance.NewEngine(ctx, store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	return NewServer(manager, checks, nil, "memory", DefaultServerOptions())
}

// do sends a request to the server and returns the recorded response
func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func intPtr(v int) *int { return &v }

func completeLabel() *compliance.Label {
	return &compliance.Label{
		ProductName:   "Pork dumplings",
		HasPorkOrBeef: true,
		MeatOrigin:    "Domestic",
		Allergens: []compliance.Allergen{
			{Category: "wheat", Found: true},
			{Category: "soy", Found: true},
			{Category: "milk", Found: false},
		},
		Manufacturer: compliance.Manufacturer{
			Name:    "Hanil Foods",
			Phone:   "080-123-4567",
			Address: "12 Market Road",
		},
		IsDomestic: true,
		Dates: compliance.LabelDates{
			ExpiryDate:         "2025-06-01",
			TotalShelfLifeDays: 365,
		},
	}
}

// TestHealth verifies the health endpoint reports the active rule book
func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, "GET", "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decode[HealthResponse](t, rec)
	if resp.Status != "healthy" || resp.RuleBookVersion != 1 || resp.Store != "memory" {
		t.Errorf("health = %+v", resp)
	}
}

// TestCalculate verifies deadlines come back from the active rule book
func TestCalculate(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name       string
		req        CalculateRequest
		wantDC     string
		wantStore  string
		wantAccept bool
		wantMode   shelflife.Mode
	}{
		{
			name:       "absolute tier past DC deadline",
			req:        CalculateRequest{ExpiryDate: "2025-06-01", TotalShelfLifeDays: intPtr(365), IsDomestic: true},
			wantDC:     "2024-09-05",
			wantStore:  "2025-01-03",
			wantAccept: false,
			wantMode:   shelflife.ModeAbsolute,
		},
		{
			name:       "today override",
			req:        CalculateRequest{ExpiryDate: "2025-06-01", TotalShelfLifeDays: intPtr(365), IsDomestic: true, Today: "2024-08-01"},
			wantDC:     "2024-09-05",
			wantStore:  "2025-01-03",
			wantAccept: true,
			wantMode:   shelflife.ModeAbsolute,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, "POST", "/api/v1/calculate", tc.req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}

			result := decode[shelflife.CalculationResult](t, rec)
			if got := result.DCAcceptanceDate.String(); got != tc.wantDC {
				t.Errorf("DCAcceptanceDate = %s, want %s", got, tc.wantDC)
			}
			if got := result.DCReleaseDate.String(); got != tc.wantStore {
				t.Errorf("DCReleaseDate = %s, want %s", got, tc.wantStore)
			}
			if result.CanAccept != tc.wantAccept {
				t.Errorf("CanAccept = %v, want %v", result.CanAccept, tc.wantAccept)
			}
			if result.Mode != tc.wantMode {
				t.Errorf("Mode = %s, want %s", result.Mode, tc.wantMode)
			}
			if result.RuleBookVersion != 1 {
				t.Errorf("RuleBookVersion = %d, want 1", result.RuleBookVersion)
			}
		})
	}
}

// TestCalculateBadRequests verifies malformed input is rejected with 400
func TestCalculateBadRequests(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name string
		body any
	}{
		{name: "malformed json", body: `{"expiryDate":`},
		{name: "missing expiry", body: CalculateRequest{TotalShelfLifeDays: intPtr(365)}},
		{name: "missing shelf life", body: CalculateRequest{ExpiryDate: "2025-06-01"}},
		{name: "impossible date", body: CalculateRequest{ExpiryDate: "2025-02-30", TotalShelfLifeDays: intPtr(365)}},
		{name: "bad today", body: CalculateRequest{ExpiryDate: "2025-06-01", TotalShelfLifeDays: intPtr(365), Today: "yesterday"}},
		{name: "bad manufacture date", body: CalculateRequest{ExpiryDate: "2025-06-01", TotalShelfLifeDays: intPtr(365), ManufactureDate: "06/02/2024"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, "POST", "/api/v1/calculate", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error == "" {
				t.Error("error message should be set")
			}
		})
	}
}

// TestInspect verifies the verdict combines deadlines with label findings
func TestInspect(t *testing.T) {
	s := newTestServer(t)

	t.Run("clean label within deadline", func(t *testing.T) {
		rec := do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: completeLabel(), Today: "2024-08-01"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		resp := decode[InspectResponse](t, rec)
		if !resp.Verdict.Passed {
			t.Errorf("verdict should pass, reasons %v", resp.Verdict.Reasons)
		}
		if len(resp.Findings) != 0 {
			t.Errorf("findings = %+v, want none", resp.Findings)
		}
		if strings.Join(resp.Allergens, ",") != "wheat,soy" {
			t.Errorf("Allergens = %v, want [wheat soy]", resp.Allergens)
		}
	})

	t.Run("missing meat origin after deadline", func(t *testing.T) {
		label := completeLabel()
		label.MeatOrigin = "  "

		rec := do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: label})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		resp := decode[InspectResponse](t, rec)
		if resp.Verdict.Passed || resp.Verdict.CanAccept {
			t.Errorf("verdict = %+v, want failed and not acceptable", resp.Verdict)
		}
		if len(resp.Findings) != 1 || resp.Findings[0].CheckID != "meat-origin-missing" {
			t.Errorf("findings = %+v", resp.Findings)
		}
		if len(resp.Verdict.Reasons) != 2 {
			t.Errorf("reasons = %v, want deadline and meat origin", resp.Verdict.Reasons)
		}
	})

	t.Run("unreadable expiry date", func(t *testing.T) {
		for _, expiry := range []string{"", "best before soon"} {
			label := completeLabel()
			label.Dates.ExpiryDate = expiry

			rec := do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: label, Today: "2024-08-01"})
			if rec.Code != http.StatusOK {
				t.Fatalf("expiry %q: status = %d, body %s", expiry, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"calculation":null`) {
				t.Errorf("expiry %q: calculation should be null, body %s", expiry, rec.Body.String())
			}

			resp := decode[InspectResponse](t, rec)
			if resp.Verdict.Passed || resp.Verdict.CanAccept {
				t.Errorf("expiry %q: verdict = %+v, want failed and not acceptable", expiry, resp.Verdict)
			}
			if len(resp.Findings) != 1 || resp.Findings[0].CheckID != "expiry-date-unreadable" {
				t.Errorf("expiry %q: findings = %+v", expiry, resp.Findings)
			}
		}
	})

	t.Run("bad today with unreadable expiry", func(t *testing.T) {
		label := completeLabel()
		label.Dates.ExpiryDate = ""

		rec := do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: label, Today: "someday"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing label", func(t *testing.T) {
		rec := do(t, s, "POST", "/api/v1/inspect", map[string]any{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

// TestTiers verifies tier lookup and table listing
func TestTiers(t *testing.T) {
	s := newTestServer(t)

	t.Run("lookup", func(t *testing.T) {
		rec := do(t, s, "GET", "/api/v1/tiers?origin=domestic&days=365", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		resp := decode[TierResponse](t, rec)
		if resp.Rule.Label != "12 months ≤ T < 15 months" {
			t.Errorf("Rule.Label = %q", resp.Rule.Label)
		}
		if resp.Origin != shelflife.OriginDomestic || resp.Version != 1 {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("import table only", func(t *testing.T) {
		rec := do(t, s, "GET", "/api/v1/tiers?origin=import", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decode[TiersResponse](t, rec)
		if len(resp.Domestic) != 0 {
			t.Errorf("domestic table should be omitted, got %d tiers", len(resp.Domestic))
		}
		if len(resp.Import) != len(shelflife.ImportRules()) {
			t.Errorf("import tiers = %d, want %d", len(resp.Import), len(shelflife.ImportRules()))
		}
	})

	for _, path := range []string{"/api/v1/tiers?origin=mars", "/api/v1/tiers?days=ten"} {
		rec := do(t, s, "GET", path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, rec.Code)
		}
	}
}

// TestPublishRuleBookWithoutDisplays verifies JSON rule books may omit display strings
func TestPublishRuleBookWithoutDisplays(t *testing.T) {
	s := newTestServer(t)

	book := shelflife.DefaultRuleBook()
	for i := range book.Domestic {
		book.Domestic[i].DCDisplay = ""
		book.Domestic[i].StoreDisplay = ""
	}

	rec := do(t, s, "POST", "/api/v1/rulebooks", PublishRuleBookRequest{Definition: book, Note: "displays omitted"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	record := decode[rulebook.Record](t, rec)
	if record.Version != 2 {
		t.Errorf("Version = %d, want 2", record.Version)
	}
	if got := record.Book.Domestic[5].DCDisplay; got != "9 months" {
		t.Errorf("Domestic[5].DCDisplay = %q, want 9 months", got)
	}
}

// TestRuleBookLifecycle verifies publish, lookup and rollback over HTTP
func TestRuleBookLifecycle(t *testing.T) {
	s := newTestServer(t)
	req := CalculateRequest{ExpiryDate: "2025-06-01", TotalShelfLifeDays: intPtr(365), IsDomestic: true}

	book := shelflife.DefaultRuleBook()
	book.Domestic[5].DCWindow = decimal.NewFromInt(300)
	book.Domestic[5].DCDisplay = "10 months"

	rec := do(t, s, "POST", "/api/v1/rulebooks", PublishRuleBookRequest{Note: "longer DC window", Definition: book})
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish status = %d, body %s", rec.Code, rec.Body.String())
	}
	published := decode[rulebook.Record](t, rec)
	if published.Version != 2 || !published.Active || published.Source != "api" {
		t.Errorf("published = %+v", published)
	}

	result := decode[shelflife.CalculationResult](t, do(t, s, "POST", "/api/v1/calculate", req))
	if got := result.DCAcceptanceDate.String(); got != "2024-08-06" {
		t.Errorf("DCAcceptanceDate after publish = %s, want 2024-08-06", got)
	}

	list := decode[RuleBooksListResponse](t, do(t, s, "GET", "/api/v1/rulebooks", nil))
	if len(list.RuleBooks) != 2 || list.RuleBooks[0].Version != 2 || list.RuleBooks[1].Active {
		t.Errorf("list = %+v", list.RuleBooks)
	}

	rec = do(t, s, "GET", "/api/v1/rulebooks/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if first := decode[rulebook.Record](t, rec); first.Source != "builtin" {
		t.Errorf("version 1 source = %q, want builtin", first.Source)
	}

	rec = do(t, s, "POST", "/api/v1/rulebooks/1/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate status = %d, body %s", rec.Code, rec.Body.String())
	}

	active := decode[rulebook.Record](t, do(t, s, "GET", "/api/v1/rulebooks/active", nil))
	if active.Version != 1 {
		t.Errorf("active version = %d, want 1", active.Version)
	}

	result = decode[shelflife.CalculationResult](t, do(t, s, "POST", "/api/v1/calculate", req))
	if got := result.DCAcceptanceDate.String(); got != "2024-09-05" {
		t.Errorf("DCAcceptanceDate after rollback = %s, want 2024-09-05", got)
	}
}

// TestRuleBookErrors verifies invalid and unknown versions map to client errors
func TestRuleBookErrors(t *testing.T) {
	s := newTestServer(t)

	broken := shelflife.DefaultRuleBook()
	broken.Import = broken.Import[:len(broken.Import)-1]

	testCases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{name: "publish gap in tiers", method: "POST", path: "/api/v1/rulebooks", body: PublishRuleBookRequest{Definition: broken}, wantStatus: http.StatusUnprocessableEntity},
		{name: "publish malformed", method: "POST", path: "/api/v1/rulebooks", body: `{"definition":`, wantStatus: http.StatusBadRequest},
		{name: "get unknown", method: "GET", path: "/api/v1/rulebooks/42", wantStatus: http.StatusNotFound},
		{name: "get non-numeric", method: "GET", path: "/api/v1/rulebooks/latest", wantStatus: http.StatusBadRequest},
		{name: "activate unknown", method: "POST", path: "/api/v1/rulebooks/42/activate", wantStatus: http.StatusNotFound},
		{name: "activate zero", method: "POST", path: "/api/v1/rulebooks/0/activate", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}

	if v := s.rulebooks.Current().Version; v != 1 {
		t.Errorf("active version = %d after failed changes, want 1", v)
	}
}

// TestChecksCRUD verifies compliance checks can be managed over HTTP
func TestChecksCRUD(t *testing.T) {
	s := newTestServer(t)

	list := decode[ChecksListResponse](t, do(t, s, "GET", "/api/v1/checks", nil))
	if len(list.Checks) != len(compliance.DefaultChecks()) {
		t.Fatalf("checks = %d, want %d defaults", len(list.Checks), len(compliance.DefaultChecks()))
	}

	rec := do(t, s, "POST", "/api/v1/checks", CreateCheckRequest{
		Name:       "Price visible",
		Expression: `!label.priceVisible`,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[compliance.Check](t, rec)
	if created.ID == "" || !created.Active || created.Reason != "Price visible" {
		t.Errorf("created = %+v", created)
	}

	label := completeLabel()
	resp := decode[InspectResponse](t, do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: label, Today: "2024-08-01"}))
	if len(resp.Findings) != 1 || resp.Findings[0].CheckID != created.ID {
		t.Errorf("findings with new check = %+v", resp.Findings)
	}

	inactive := false
	rec = do(t, s, "PUT", "/api/v1/checks/"+created.ID, UpdateCheckRequest{Active: &inactive})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if updated := decode[compliance.Check](t, rec); updated.Active || updated.Expression != `!label.priceVisible` {
		t.Errorf("updated = %+v", updated)
	}

	resp = decode[InspectResponse](t, do(t, s, "POST", "/api/v1/inspect", InspectRequest{Label: label, Today: "2024-08-01"}))
	if len(resp.Findings) != 0 {
		t.Errorf("inactive check still reported: %+v", resp.Findings)
	}

	if rec := do(t, s, "GET", "/api/v1/checks/"+created.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	if rec := do(t, s, "DELETE", "/api/v1/checks/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/v1/checks/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

// TestChecksErrors verifies conflicts, bad expressions and unknown IDs
func TestChecksErrors(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{name: "duplicate id", method: "POST", path: "/api/v1/checks", body: CreateCheckRequest{ID: "meat-origin-missing", Name: "dup", Expression: "true"}, wantStatus: http.StatusConflict},
		{name: "missing expression", method: "POST", path: "/api/v1/checks", body: CreateCheckRequest{Name: "empty"}, wantStatus: http.StatusBadRequest},
		{name: "does not compile", method: "POST", path: "/api/v1/checks", body: CreateCheckRequest{Name: "broken", Expression: "label.productName =="}, wantStatus: http.StatusBadRequest},
		{name: "update unknown", method: "PUT", path: "/api/v1/checks/nope", body: UpdateCheckRequest{Name: "x"}, wantStatus: http.StatusNotFound},
		{name: "update bad expression", method: "PUT", path: "/api/v1/checks/meat-origin-missing", body: UpdateCheckRequest{Expression: "label.("}, wantStatus: http.StatusBadRequest},
		{name: "delete unknown", method: "DELETE", path: "/api/v1/checks/nope", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

// TestMetricsEndpoint verifies request metrics are exposed after traffic
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	do(t, s, "GET", "/api/v1/health", nil)

	rec := do(t, s, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/v1/health"`) {
		t.Error("metrics output should include the health route")
	}
}
