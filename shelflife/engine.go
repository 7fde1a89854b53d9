package shelflife

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Request carries the inputs of one calculation.
// ManufactureDate is optional; an empty string means the label did not show one.
type Request struct {
	ExpiryDate         string `json:"expiryDate"`
	TotalShelfLifeDays int    `json:"totalShelfLifeDays"`
	IsDomestic         bool   `json:"isDomestic"`
	ManufactureDate    string `json:"manufactureDate,omitempty"`
}

// Engine resolves acceptance deadlines against one immutable rule book.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	book  RuleBook
	clock Clock
	loc   *time.Location
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock used to sample "today"
func WithClock(c Clock) Option {
	return func(en *Engine) {
		en.clock = c
	}
}

// WithLocation sets the zone in which "today" is determined
func WithLocation(loc *time.Location) Option {
	return func(en *Engine) {
		if loc != nil {
			en.loc = loc
		}
	}
}

// NewEngine validates book and returns an engine bound to a private copy of it
func NewEngine(book RuleBook, opts ...Option) (*Engine, error) {
	if err := book.Validate(); err != nil {
		return nil, fmt.Errorf("rule book %d: %w", book.Version, err)
	}

	en := &Engine{
		book:  book.Clone(),
		clock: SystemClock{},
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(en)
	}

	return en, nil
}

// RuleBook returns a copy of the engine's rule book
func (en *Engine) RuleBook() RuleBook {
	return en.book.Clone()
}

// Location returns the zone used for "today"
func (en *Engine) Location() *time.Location {
	return en.loc
}

// Today samples the clock once and returns the current calendar day
func (en *Engine) Today() Date {
	return DateOf(en.clock.Now().In(en.loc))
}

// Lookup resolves the tier for a shelf life and origin
func (en *Engine) Lookup(origin Origin, totalShelfLifeDays int) (ShelfLifeRule, error) {
	rule, err := en.book.For(origin).Resolve(totalShelfLifeDays)
	if err != nil {
		return ShelfLifeRule{}, err
	}
	return rule.clone(), nil
}

// ResolveAcceptance computes the acceptance deadlines for one product
func (en *Engine) ResolveAcceptance(expiryDate string, totalShelfLifeDays int, isDomestic bool, manufactureDate string) (*CalculationResult, error) {
	return en.Calculate(Request{
		ExpiryDate:         expiryDate,
		TotalShelfLifeDays: totalShelfLifeDays,
		IsDomestic:         isDomestic,
		ManufactureDate:    manufactureDate,
	})
}

// Calculate samples "today" once and computes the deadlines for req
func (en *Engine) Calculate(req Request) (*CalculationResult, error) {
	return en.CalculateAt(req, en.Today())
}

// CalculateAt computes the deadlines for req as of the given day
func (en *Engine) CalculateAt(req Request, today Date) (*CalculationResult, error) {
	expiry, err := ParseDate(req.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("expiry date: %w", err)
	}

	var explicit *Date
	if strings.TrimSpace(req.ManufactureDate) != "" {
		m, err := ParseDate(req.ManufactureDate)
		if err != nil {
			return nil, fmt.Errorf("manufacture date: %w", err)
		}
		explicit = &m
	}

	origin := OriginFromDomestic(req.IsDomestic)
	rule, err := en.book.For(origin).Resolve(req.TotalShelfLifeDays)
	if err != nil {
		return nil, fmt.Errorf("rule book %d, %s: %w", en.book.Version, origin, err)
	}

	manufacture := DerivedManufactureDate(expiry, req.TotalShelfLifeDays)
	derived := true
	if explicit != nil {
		manufacture = *explicit
		derived = false
	}

	result := &CalculationResult{
		TotalShelfLife:         req.TotalShelfLifeDays,
		Origin:                 origin,
		ManufactureDate:        manufacture,
		ManufactureDateDerived: derived,
		ExpiryDate:             expiry,
		RuleUsed:               rule.Label,
		Mode:                   rule.Mode,
		RuleBookVersion:        en.book.Version,
		EvaluatedOn:            today,
	}

	switch rule.Mode {
	case ModeRelative:
		result.DCAcceptanceDate = relativeDeadline(manufacture, rule.DCWindow)
		result.DCReleaseDate = relativeDeadline(manufacture, rule.StoreWindow)
	default:
		result.DCAcceptanceDate = absoluteDeadline(expiry, rule.DCWindow)
		result.DCReleaseDate = absoluteDeadline(expiry, rule.StoreWindow)
	}

	result.DCFormula = formula(rule, rule.DCDisplay, manufacture, expiry, result.DCAcceptanceDate)
	result.StoreFormula = formula(rule, rule.StoreDisplay, manufacture, expiry, result.DCReleaseDate)

	result.CanAccept = !today.After(result.DCAcceptanceDate)
	result.CanRelease = !today.After(result.DCReleaseDate)

	return result, nil
}

// DerivedManufactureDate returns the manufacture date implied by an expiry
// date and total shelf life, counting both end days: expiry - days + 1.
func DerivedManufactureDate(expiry Date, totalShelfLifeDays int) Date {
	return expiry.AddDays(-max(totalShelfLifeDays, 0) + 1)
}

var oneDay = decimal.NewFromInt(1)

// relativeDeadline counts window days forward from manufacture
func relativeDeadline(manufacture Date, window decimal.Decimal) Date {
	return manufacture.Shift(window)
}

// absoluteDeadline counts window days back from expiry, keeping the deadline day itself
func absoluteDeadline(expiry Date, window decimal.Decimal) Date {
	return expiry.Shift(oneDay.Sub(window))
}

func formula(rule ShelfLifeRule, display string, manufacture, expiry, deadline Date) string {
	if rule.IsRelative() {
		return fmt.Sprintf("[Rule: %s] %s date (%s) + %s = %s", rule.Label, rule.Mode.Anchor(), manufacture, display, deadline)
	}
	return fmt.Sprintf("[Rule: %s] %s date (%s) - %s + 1 day = %s", rule.Label, rule.Mode.Anchor(), expiry, display, deadline)
}
