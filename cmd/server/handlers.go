package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/liamcoop/shelflife/compliance"
	"github.com/liamcoop/shelflife/internal/logger"
	"github.com/liamcoop/shelflife/internal/metrics"
	"github.com/liamcoop/shelflife/rulebook"
	"github.com/liamcoop/shelflife/shelflife"
)

// calculate runs the active engine, as of today unless the caller names a day
func (s *Server) calculate(req shelflife.Request, today string) (*shelflife.CalculationResult, error) {
	engine := s.rulebooks.Engine()

	var (
		result *shelflife.CalculationResult
		err    error
	)
	if today == "" {
		result, err = engine.Calculate(req)
	} else {
		var day shelflife.Date
		day, err = shelflife.ParseDate(today)
		if err != nil {
			err = fmt.Errorf("today: %w", err)
		} else {
			result, err = engine.CalculateAt(req, day)
		}
	}

	metrics.ObserveCalculation(result, err)
	return result, err
}

// calculationStatus maps engine errors onto HTTP statuses: bad input is the
// caller's fault, a table with no matching tier is ours
func calculationStatus(err error) int {
	if errors.Is(err, shelflife.ErrInvalidDate) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Calculation handler
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if strings.TrimSpace(req.ExpiryDate) == "" {
		respondError(w, http.StatusBadRequest, "expiryDate is required", nil)
		return
	}
	if req.TotalShelfLifeDays == nil {
		respondError(w, http.StatusBadRequest, "totalShelfLifeDays is required", nil)
		return
	}

	result, err := s.calculate(req.engineRequest(), req.Today)
	if err != nil {
		respondError(w, calculationStatus(err), "calculation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Inspection handler: deadlines plus label compliance in one verdict
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Label == nil {
		respondError(w, http.StatusBadRequest, "label is required", nil)
		return
	}

	reqLog := logger.With("request_id", middleware.GetReqID(r.Context()))

	if req.Today != "" {
		if _, err := shelflife.ParseDate(req.Today); err != nil {
			respondError(w, http.StatusBadRequest, "calculation failed", fmt.Errorf("today: %w", err))
			return
		}
	}

	// An unreadable expiry date is a label finding, not a bad request
	var calc *shelflife.CalculationResult
	if _, err := shelflife.ParseDate(req.Label.Dates.ExpiryDate); err != nil {
		reqLog.Debug("expiry date unreadable, skipping deadlines", "expiry_date", req.Label.Dates.ExpiryDate)
	} else {
		calc, err = s.calculate(req.Label.Request(), req.Today)
		if err != nil {
			respondError(w, calculationStatus(err), "calculation failed", err)
			return
		}
	}

	findings, err := s.checks.Findings(r.Context(), req.Label)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "compliance evaluation failed", err)
		return
	}

	verdict := compliance.Aggregate(calc, findings)

	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.CheckID
	}
	metrics.ObserveVerdict(verdict.Passed, ids)
	reqLog.Debug("label inspected", "passed", verdict.Passed, "findings", ids)

	respondJSON(w, http.StatusOK, InspectResponse{
		Calculation: calc,
		Findings:    verdict.Findings,
		Verdict:     verdict,
		Allergens:   req.Label.FoundAllergens(),
	})
}

// Tier lookup handler. Without days the full table is returned.
func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	engine := s.rulebooks.Engine()
	book := engine.RuleBook()
	query := r.URL.Query()

	var (
		origin    shelflife.Origin
		hasOrigin bool
	)
	if v := query.Get("origin"); v != "" {
		parsed, err := shelflife.ParseOrigin(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid origin", err)
			return
		}
		origin, hasOrigin = parsed, true
	}

	daysParam := query.Get("days")
	if daysParam == "" {
		resp := TiersResponse{Version: book.Version}
		if !hasOrigin || origin == shelflife.OriginDomestic {
			resp.Domestic = book.Domestic
		}
		if !hasOrigin || origin == shelflife.OriginImported {
			resp.Import = book.Import
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	days, err := strconv.Atoi(daysParam)
	if err != nil {
		respondError(w, http.StatusBadRequest, "days must be an integer", err)
		return
	}

	rule, err := engine.Lookup(origin, days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "tier lookup failed", err)
		return
	}

	respondJSON(w, http.StatusOK, TierResponse{
		Version:            book.Version,
		Origin:             origin,
		TotalShelfLifeDays: days,
		Rule:               rule,
	})
}

// List rule books handler
func (s *Server) handleListRuleBooks(w http.ResponseWriter, r *http.Request) {
	records, err := s.rulebooks.Store().List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rule books", err)
		return
	}

	summaries := make([]RuleBookSummary, len(records))
	for i, rec := range records {
		summaries[i] = summarize(rec)
	}

	respondJSON(w, http.StatusOK, RuleBooksListResponse{RuleBooks: summaries})
}

// Publish rule book handler: validates, stores and activates a new version
func (s *Server) handlePublishRuleBook(w http.ResponseWriter, r *http.Request) {
	var req PublishRuleBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	record, err := s.rulebooks.Publish(r.Context(), req.Definition, req.Note, "api")
	metrics.ObserveRuleBookChange("publish", versionOf(record), err)
	if errors.Is(err, shelflife.ErrInvalidRuleSet) {
		respondError(w, http.StatusUnprocessableEntity, "invalid rule book", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to publish rule book", err)
		return
	}

	respondJSON(w, http.StatusCreated, record)
}

// Active rule book handler
func (s *Server) handleActiveRuleBook(w http.ResponseWriter, r *http.Request) {
	current := s.rulebooks.Current()
	if current == nil {
		respondError(w, http.StatusNotFound, "no active rule book", nil)
		return
	}
	respondJSON(w, http.StatusOK, current)
}

// Get rule book handler
func (s *Server) handleGetRuleBook(w http.ResponseWriter, r *http.Request) {
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	record, err := s.rulebooks.Store().Get(r.Context(), version)
	if errors.Is(err, rulebook.ErrNotFound) {
		respondError(w, http.StatusNotFound, "rule book not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get rule book", err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// Activate rule book handler (rollback to an earlier version)
func (s *Server) handleActivateRuleBook(w http.ResponseWriter, r *http.Request) {
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	record, err := s.rulebooks.Activate(r.Context(), version)
	metrics.ObserveRuleBookChange("activate", versionOf(record), err)
	if errors.Is(err, rulebook.ErrNotFound) {
		respondError(w, http.StatusNotFound, "rule book not found", err)
		return
	}
	if errors.Is(err, shelflife.ErrInvalidRuleSet) {
		respondError(w, http.StatusUnprocessableEntity, "invalid rule book", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to activate rule book", err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

func versionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version <= 0 {
		respondError(w, http.StatusBadRequest, "version must be a positive integer", err)
		return 0, false
	}
	return version, true
}

func versionOf(record *rulebook.Record) int {
	if record == nil {
		return 0
	}
	return record.Version
}

// List checks handler
func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.checks.Store().List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list checks", err)
		return
	}
	respondJSON(w, http.StatusOK, ChecksListResponse{Checks: checks})
}

// Create check handler
func (s *Server) handleCreateCheck(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}

	check := &compliance.Check{
		ID:         req.ID,
		Name:       req.Name,
		Reason:     req.Reason,
		Expression: req.Expression,
		Active:     req.Active == nil || *req.Active,
	}
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.Reason == "" {
		check.Reason = check.Name
	}

	// AddCheck compiles the expression before storing it
	err := s.checks.AddCheck(r.Context(), check)
	if errors.Is(err, compliance.ErrCheckExists) {
		respondError(w, http.StatusConflict, "check already exists", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to add check", err)
		return
	}

	respondJSON(w, http.StatusCreated, check)
}

// Get check handler
func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.checks.Store().Get(r.Context(), chi.URLParam(r, "checkId"))
	if errors.Is(err, compliance.ErrCheckNotFound) {
		respondError(w, http.StatusNotFound, "check not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get check", err)
		return
	}
	respondJSON(w, http.StatusOK, check)
}

// Update check handler
func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "checkId")

	var req UpdateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := s.checks.Store().Get(r.Context(), checkID)
	if errors.Is(err, compliance.ErrCheckNotFound) {
		respondError(w, http.StatusNotFound, "check not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get check", err)
		return
	}

	// omitted fields keep their stored values
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Reason != "" {
		existing.Reason = req.Reason
	}
	if req.Expression != "" {
		existing.Expression = req.Expression
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}

	if err := s.checks.UpdateCheck(r.Context(), existing); err != nil {
		if errors.Is(err, compliance.ErrCheckNotFound) {
			respondError(w, http.StatusNotFound, "check not found", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to update check", err)
		return
	}

	respondJSON(w, http.StatusOK, existing)
}

// Delete check handler
func (s *Server) handleDeleteCheck(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "checkId")

	if err := s.checks.DeleteCheck(r.Context(), checkID); err != nil {
		if errors.Is(err, compliance.ErrCheckNotFound) {
			respondError(w, http.StatusNotFound, "check not found", err)
			return
		}
		logger.Error("failed to delete check", "check_id", checkID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete check", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
