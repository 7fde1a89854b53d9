package shelflife

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRuleBookVersion is the version number carried by the built-in tables
const DefaultRuleBookVersion = 1

// DefaultRuleBook returns a fresh copy of the built-in domestic and import
// tables. Callers may modify the returned value freely.
func DefaultRuleBook() RuleBook {
	return RuleBook{
		Version:  DefaultRuleBookVersion,
		Domestic: DomesticRules(),
		Import:   ImportRules(),
	}
}

// DomesticRules returns the tiers for domestically produced goods
func DomesticRules() RuleSet {
	return RuleSet{
		absoluteTier(1080, 0, "750", "540", "T ≥ 36 months"),
		absoluteTier(900, 1080, "630", "450", "30 months ≤ T < 36 months"),
		absoluteTier(720, 900, "510", "360", "24 months ≤ T < 30 months"),
		absoluteTier(540, 720, "390", "270", "18 months ≤ T < 24 months"),
		absoluteTier(450, 540, "330", "210", "15 months ≤ T < 18 months"),
		absoluteTier(360, 450, "270", "150", "12 months ≤ T < 15 months"),
		absoluteTier(300, 360, "225", "135", "10 months ≤ T < 12 months"),
		absoluteTier(270, 300, "210", "120", "9 months ≤ T < 10 months"),
		absoluteTier(240, 270, "180", "105", "8 months ≤ T < 9 months"),
		absoluteTier(210, 240, "160", "90", "7 months ≤ T < 8 months"),
		absoluteTier(180, 210, "140", "70", "6 months ≤ T < 7 months"),
		absoluteTier(150, 180, "120", "60", "5 months ≤ T < 6 months"),
		absoluteTier(120, 150, "90", "45", "4 months ≤ T < 5 months"),
		absoluteTier(90, 120, "60", "40", "3 months ≤ T < 4 months"),
		absoluteTier(75, 90, "50", "30", "2.5 months ≤ T < 3 months"),
		absoluteTier(60, 75, "45", "20", "2 months ≤ T < 2.5 months"),
		absoluteTier(45, 60, "35", "20", "1.5 months ≤ T < 2 months"),
		absoluteTier(30, 45, "25", "20", "1 month ≤ T < 1.5 months"),
		relativeTier(16, 30, "4", "6", "16 days ≤ T < 30 days"),
		relativeTier(10, 16, "3", "4", "10 days ≤ T < 16 days"),
		relativeTier(6, 10, "1", "2", "6 days ≤ T < 10 days"),
		relativeTier(3, 6, "1", "1.5", "3 days ≤ T < 6 days"),
		relativeTier(0, 3, "0", "0", "T < 3 days"),
	}
}

// ImportRules returns the tiers for imported goods.
// Below 60 days imported goods keep the 2 to 2.5 month windows.
func ImportRules() RuleSet {
	return RuleSet{
		absoluteTier(1080, 0, "630", "540", "T ≥ 36 months (import)"),
		absoluteTier(900, 1080, "510", "450", "30 months ≤ T < 36 months (import)"),
		absoluteTier(720, 900, "420", "360", "24 months ≤ T < 30 months (import)"),
		absoluteTier(540, 720, "300", "270", "18 months ≤ T < 24 months (import)"),
		absoluteTier(450, 540, "240", "210", "15 months ≤ T < 18 months (import)"),
		absoluteTier(360, 450, "180", "150", "12 months ≤ T < 15 months (import)"),
		absoluteTier(300, 360, "150", "135", "10 months ≤ T < 12 months (import)"),
		absoluteTier(270, 300, "135", "120", "9 months ≤ T < 10 months (import)"),
		absoluteTier(240, 270, "120", "105", "8 months ≤ T < 9 months (import)"),
		absoluteTier(210, 240, "105", "90", "7 months ≤ T < 8 months (import)"),
		absoluteTier(180, 210, "85", "70", "6 months ≤ T < 7 months (import)"),
		absoluteTier(150, 180, "70", "60", "5 months ≤ T < 6 months (import)"),
		absoluteTier(120, 150, "55", "45", "4 months ≤ T < 5 months (import)"),
		absoluteTier(90, 120, "45", "40", "3 months ≤ T < 4 months (import)"),
		absoluteTier(75, 90, "35", "30", "2.5 months ≤ T < 3 months (import)"),
		absoluteTier(60, 75, "25", "20", "2 months ≤ T < 2.5 months (import)"),
		absoluteTier(0, 60, "25", "20", "T < 2 months (import)"),
	}
}

// absoluteTier builds a tier; maxDays 0 means unbounded
func absoluteTier(minDays, maxDays int, dc, store, label string) ShelfLifeRule {
	rule := ShelfLifeRule{
		MinDays:     minDays,
		DCWindow:    decimal.RequireFromString(dc),
		StoreWindow: decimal.RequireFromString(store),
		Label:       label,
		Mode:        ModeAbsolute,
	}
	if maxDays > 0 {
		rule.MaxDays = &maxDays
	}
	rule.DCDisplay = windowDisplay(rule.DCWindow)
	rule.StoreDisplay = windowDisplay(rule.StoreWindow)
	return rule
}

func relativeTier(minDays, maxDays int, dc, store, label string) ShelfLifeRule {
	rule := absoluteTier(minDays, maxDays, dc, store, label)
	rule.Mode = ModeRelative
	rule.DCDisplay = DefaultDisplay(ModeRelative, rule.DCWindow)
	rule.StoreDisplay = DefaultDisplay(ModeRelative, rule.StoreWindow)
	return rule
}

// DefaultDisplay renders a window the way the built-in tables do:
// "D+N days" for relative tiers, months or days for absolute ones.
func DefaultDisplay(mode Mode, window decimal.Decimal) string {
	if mode == ModeRelative {
		return "D+" + window.String() + " days"
	}
	return windowDisplay(window)
}

var daysPerMonth = decimal.NewFromInt(30)

// windowDisplay renders whole and half months as months, anything else as days
func windowDisplay(days decimal.Decimal) string {
	months := days.Div(daysPerMonth)
	if months.Mul(decimal.NewFromInt(2)).IsInteger() && !months.IsZero() {
		if months.Equal(decimal.NewFromInt(1)) {
			return "1 month"
		}
		return fmt.Sprintf("%s months", months.String())
	}
	return fmt.Sprintf("%s days", days.String())
}
