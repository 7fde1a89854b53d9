package shelflife

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDate is returned when a date string cannot be parsed
	ErrInvalidDate = errors.New("invalid date")

	// ErrNoMatchingTier is returned when no tier covers a shelf-life duration
	ErrNoMatchingTier = errors.New("no shelf-life tier matches")

	// ErrInvalidRuleSet is returned when a rule table does not partition the durations
	ErrInvalidRuleSet = errors.New("invalid rule set")
)

// Origin selects which rule set applies to a product
type Origin int

const (
	OriginDomestic Origin = iota
	OriginImported
)

// OriginFromDomestic maps the upstream isDomestic flag to an Origin
func OriginFromDomestic(isDomestic bool) Origin {
	if isDomestic {
		return OriginDomestic
	}
	return OriginImported
}

func (o Origin) String() string {
	switch o {
	case OriginDomestic:
		return "domestic"
	case OriginImported:
		return "imported"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// ParseOrigin accepts "domestic", "imported" or "import" (case-insensitive)
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domestic":
		return OriginDomestic, nil
	case "imported", "import":
		return OriginImported, nil
	default:
		return 0, fmt.Errorf("unknown origin %q (must be domestic or imported)", s)
	}
}

func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Origin) UnmarshalText(b []byte) error {
	parsed, err := ParseOrigin(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Mode selects the date arithmetic used by a tier.
// Absolute tiers count backward from the expiry date, relative tiers count
// forward from the manufacture date.
type Mode int

const (
	ModeAbsolute Mode = iota
	ModeRelative
)

func (m Mode) String() string {
	switch m {
	case ModeAbsolute:
		return "absolute"
	case ModeRelative:
		return "relative"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Anchor names the date the mode counts from
func (m Mode) Anchor() string {
	if m == ModeRelative {
		return "manufacture"
	}
	return "expiry"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "absolute", "":
		*m = ModeAbsolute
	case "relative":
		*m = ModeRelative
	default:
		return fmt.Errorf("unknown mode %q (must be absolute or relative)", string(b))
	}
	return nil
}

// ShelfLifeRule is one tier of a rule table.
// A tier applies to total shelf lives in [MinDays, MaxDays); a nil MaxDays
// means the tier is unbounded above.
type ShelfLifeRule struct {
	MinDays      int             `json:"minDays" toml:"min_days"`
	MaxDays      *int            `json:"maxDays,omitempty" toml:"max_days,omitempty"`
	DCWindow     decimal.Decimal `json:"dcWindow" toml:"dc_window"`
	StoreWindow  decimal.Decimal `json:"storeWindow" toml:"store_window"`
	DCDisplay    string          `json:"dcDisplay" toml:"dc_display"`
	StoreDisplay string          `json:"storeDisplay" toml:"store_display"`
	Label        string          `json:"label" toml:"label"`
	Mode         Mode            `json:"mode" toml:"mode"`
}

// Bounded reports whether the tier has an upper bound
func (r ShelfLifeRule) Bounded() bool {
	return r.MaxDays != nil
}

// Contains reports whether days falls within the tier's range
func (r ShelfLifeRule) Contains(days int) bool {
	if days < r.MinDays {
		return false
	}
	return r.MaxDays == nil || days < *r.MaxDays
}

// IsRelative reports whether deadlines count forward from manufacture
func (r ShelfLifeRule) IsRelative() bool {
	return r.Mode == ModeRelative
}

func (r ShelfLifeRule) clone() ShelfLifeRule {
	if r.MaxDays != nil {
		maxDays := *r.MaxDays
		r.MaxDays = &maxDays
	}
	return r
}

// CalculationResult is the outcome of one engine invocation.
// DCReleaseDate is the store deadline; the name is kept for API compatibility.
type CalculationResult struct {
	TotalShelfLife         int    `json:"totalShelfLife"`
	Origin                 Origin `json:"origin"`
	ManufactureDate        Date   `json:"manufactureDate"`
	ManufactureDateDerived bool   `json:"manufactureDateDerived"`
	ExpiryDate             Date   `json:"expiryDate"`
	DCAcceptanceDate       Date   `json:"dcAcceptanceDate"`
	DCReleaseDate          Date   `json:"dcReleaseDate"`
	CanAccept              bool   `json:"canAccept"`
	CanRelease             bool   `json:"canRelease"`
	RuleUsed               string `json:"ruleUsed"`
	Mode                   Mode   `json:"mode"`
	RuleBookVersion        int    `json:"ruleBookVersion"`
	DCFormula              string `json:"dcFormula"`
	StoreFormula           string `json:"storeFormula"`
	EvaluatedOn            Date   `json:"evaluatedOn"`
}

// StoreDeadline returns the last day the product may stay on a store shelf
func (r *CalculationResult) StoreDeadline() Date {
	return r.DCReleaseDate
}
