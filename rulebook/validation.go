package rulebook

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/liamcoop/shelflife/shelflife"
)

const (
	// MaxTiers is the largest number of tiers accepted per origin
	MaxTiers = 64

	// MaxLabelLength is the longest tier label accepted, in characters
	MaxLabelLength = 120
)

// ValidateDefinition checks a rule book before it is published.
// On top of the partition check done by the engine it enforces size limits,
// unique labels, windows that fit inside the tier, and a store deadline
// that never falls before the DC deadline.
func ValidateDefinition(book shelflife.RuleBook) error {
	if err := book.Validate(); err != nil {
		return err
	}

	var errs []error
	for _, origin := range []shelflife.Origin{shelflife.OriginDomestic, shelflife.OriginImported} {
		if err := validateRuleSet(book.For(origin)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", origin, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", shelflife.ErrInvalidRuleSet, errors.Join(errs...))
	}
	return nil
}

// FillDisplays returns a copy of book in which every blank display string is
// derived from its window and mode
func FillDisplays(book shelflife.RuleBook) shelflife.RuleBook {
	book = book.Clone()
	for _, rules := range []shelflife.RuleSet{book.Domestic, book.Import} {
		for i := range rules {
			if rules[i].DCDisplay == "" {
				rules[i].DCDisplay = shelflife.DefaultDisplay(rules[i].Mode, rules[i].DCWindow)
			}
			if rules[i].StoreDisplay == "" {
				rules[i].StoreDisplay = shelflife.DefaultDisplay(rules[i].Mode, rules[i].StoreWindow)
			}
		}
	}
	return book
}

func validateRuleSet(rules shelflife.RuleSet) error {
	if len(rules) > MaxTiers {
		return fmt.Errorf("contains %d tiers, maximum allowed is %d", len(rules), MaxTiers)
	}

	var errs []error
	labels := make(map[string]int, len(rules))
	for i, rule := range rules {
		if n := utf8.RuneCountInString(rule.Label); n > MaxLabelLength {
			errs = append(errs, fmt.Errorf("tier %d: label length %d exceeds maximum of %d characters", i, n, MaxLabelLength))
		}
		if prev, dup := labels[rule.Label]; dup {
			errs = append(errs, fmt.Errorf("tier %d (%s): label duplicates tier %d", i, rule.Label, prev))
		}
		labels[rule.Label] = i

		// an absolute window longer than the shelf life would put the deadline before manufacture
		if rule.Mode == shelflife.ModeAbsolute {
			limit := rule.MinDays
			if rule.Bounded() {
				limit = *rule.MaxDays
			}
			if rule.DCWindow.IntPart() > int64(limit) {
				errs = append(errs, fmt.Errorf("tier %d (%s): dc window %s exceeds the tier's %d days", i, rule.Label, rule.DCWindow, limit))
			}
			if rule.StoreWindow.GreaterThan(rule.DCWindow) {
				errs = append(errs, fmt.Errorf("tier %d (%s): store window %s must not exceed dc window %s", i, rule.Label, rule.StoreWindow, rule.DCWindow))
			}
		} else if rule.StoreWindow.LessThan(rule.DCWindow) {
			errs = append(errs, fmt.Errorf("tier %d (%s): store window %s must not be shorter than dc window %s", i, rule.Label, rule.StoreWindow, rule.DCWindow))
		}
	}
	return errors.Join(errs...)
}
