package main

import (
	"time"

	"github.com/liamcoop/shelflife/compliance"
	"github.com/liamcoop/shelflife/rulebook"
	"github.com/liamcoop/shelflife/shelflife"
)

// API Request and Response Models

// CalculateRequest is the body of POST /api/v1/calculate.
// Today overrides the server's calendar day for what-if queries.
type CalculateRequest struct {
	ExpiryDate         string `json:"expiryDate" example:"2025-06-01"`
	TotalShelfLifeDays *int   `json:"totalShelfLifeDays" example:"365"`
	IsDomestic         bool   `json:"isDomestic" example:"true"`
	ManufactureDate    string `json:"manufactureDate,omitempty" example:"2024-06-02"`
	Today              string `json:"today,omitempty" example:"2024-12-01"`
} // @name CalculateRequest

func (r CalculateRequest) engineRequest() shelflife.Request {
	return shelflife.Request{
		ExpiryDate:         r.ExpiryDate,
		TotalShelfLifeDays: *r.TotalShelfLifeDays,
		IsDomestic:         r.IsDomestic,
		ManufactureDate:    r.ManufactureDate,
	}
}

// InspectRequest is the body of POST /api/v1/inspect
type InspectRequest struct {
	Label *compliance.Label `json:"label"`
	Today string            `json:"today,omitempty" example:"2024-12-01"`
} // @name InspectRequest

// InspectResponse combines the temporal result with label findings
type InspectResponse struct {
	Calculation *shelflife.CalculationResult `json:"calculation"`
	Findings    []compliance.Finding         `json:"findings"`
	Verdict     compliance.Verdict           `json:"verdict"`
	Allergens   []string                     `json:"allergens"`
} // @name InspectResponse

// TiersResponse lists the tiers of one or both origins
type TiersResponse struct {
	Version  int               `json:"version" example:"1"`
	Domestic shelflife.RuleSet `json:"domestic,omitempty"`
	Import   shelflife.RuleSet `json:"import,omitempty"`
} // @name TiersResponse

// TierResponse is the tier resolved for one shelf life
type TierResponse struct {
	Version            int                     `json:"version" example:"1"`
	Origin             shelflife.Origin        `json:"origin" example:"domestic"`
	TotalShelfLifeDays int                     `json:"totalShelfLifeDays" example:"365"`
	Rule               shelflife.ShelfLifeRule `json:"rule"`
} // @name TierResponse

// PublishRuleBookRequest is the body of POST /api/v1/rulebooks
type PublishRuleBookRequest struct {
	Note       string             `json:"note,omitempty" example:"Q3 review"`
	Definition shelflife.RuleBook `json:"definition"`
} // @name PublishRuleBookRequest

// RuleBookSummary is a rule book version without its tiers
type RuleBookSummary struct {
	Version   int       `json:"version" example:"2"`
	Note      string    `json:"note,omitempty" example:"Q3 review"`
	Source    string    `json:"source,omitempty" example:"api"`
	Active    bool      `json:"active" example:"true"`
	CreatedAt time.Time `json:"createdAt" example:"2024-01-15T10:30:00Z"`
} // @name RuleBookSummary

func summarize(r *rulebook.Record) RuleBookSummary {
	return RuleBookSummary{
		Version:   r.Version,
		Note:      r.Note,
		Source:    r.Source,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

// RuleBooksListResponse lists every version, newest first
type RuleBooksListResponse struct {
	RuleBooks []RuleBookSummary `json:"rulebooks"`
} // @name RuleBooksListResponse

// CreateCheckRequest is the body of POST /api/v1/checks.
// ID is generated when empty.
type CreateCheckRequest struct {
	ID         string `json:"id,omitempty" example:"meat-origin-missing"`
	Name       string `json:"name" example:"Meat origin missing"`
	Reason     string `json:"reason" example:"Pork or beef product does not state the meat origin"`
	Expression string `json:"expression" example:"label.hasPorkOrBeef && label.meatOrigin == \"\""`
	Active     *bool  `json:"active,omitempty" example:"true"`
} // @name CreateCheckRequest

// UpdateCheckRequest is the body of PUT /api/v1/checks/{checkId}
type UpdateCheckRequest struct {
	Name       string `json:"name" example:"Meat origin missing"`
	Reason     string `json:"reason" example:"Pork or beef product does not state the meat origin"`
	Expression string `json:"expression" example:"label.hasPorkOrBeef && label.meatOrigin == \"\""`
	Active     *bool  `json:"active,omitempty" example:"true"`
} // @name UpdateCheckRequest

// ChecksListResponse lists compliance checks
type ChecksListResponse struct {
	Checks []*compliance.Check `json:"checks"`
} // @name ChecksListResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty" example:"invalid date: \"2025-13-01\""`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status          string `json:"status" example:"healthy"`
	RuleBookVersion int    `json:"ruleBookVersion" example:"1"`
	Store           string `json:"store" example:"postgres"`
	Error           string `json:"error,omitempty"`
} // @name HealthResponse
