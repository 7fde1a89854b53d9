package shelflife

import (
	"errors"
	"fmt"
)

// RuleSet is the ordered tier list for one origin, longest shelf life first
type RuleSet []ShelfLifeRule

// Resolve returns the tier whose range contains totalShelfLifeDays.
// Bounded tiers are scanned in order; if none matches the unbounded tier is
// returned. Durations below zero resolve as zero.
func (rs RuleSet) Resolve(totalShelfLifeDays int) (ShelfLifeRule, error) {
	days := max(totalShelfLifeDays, 0)

	for _, rule := range rs {
		if rule.Bounded() && rule.Contains(days) {
			return rule, nil
		}
	}

	for _, rule := range rs {
		if !rule.Bounded() && rule.Contains(days) {
			return rule, nil
		}
	}

	return ShelfLifeRule{}, fmt.Errorf("%w: %d days", ErrNoMatchingTier, totalShelfLifeDays)
}

// Validate checks that the tiers partition the non-negative integers:
// one unbounded tier first, each following tier ending where the previous
// one starts, and the last tier starting at zero.
func (rs RuleSet) Validate() error {
	if len(rs) == 0 {
		return fmt.Errorf("%w: no tiers defined", ErrInvalidRuleSet)
	}

	var errs []error
	unbounded := 0
	for i, rule := range rs {
		if !rule.Bounded() {
			unbounded++
			if i != 0 {
				errs = append(errs, fmt.Errorf("tier %d (%s): only the first tier may be unbounded", i, rule.Label))
			}
		} else if *rule.MaxDays <= rule.MinDays {
			errs = append(errs, fmt.Errorf("tier %d (%s): maxDays %d must be greater than minDays %d", i, rule.Label, *rule.MaxDays, rule.MinDays))
		}

		if rule.MinDays < 0 {
			errs = append(errs, fmt.Errorf("tier %d (%s): minDays %d is negative", i, rule.Label, rule.MinDays))
		}
		if rule.DCWindow.IsNegative() || rule.StoreWindow.IsNegative() {
			errs = append(errs, fmt.Errorf("tier %d (%s): windows must not be negative", i, rule.Label))
		}
		if rule.Label == "" {
			errs = append(errs, fmt.Errorf("tier %d: label is required", i))
		}
		if rule.DCDisplay == "" || rule.StoreDisplay == "" {
			errs = append(errs, fmt.Errorf("tier %d (%s): display strings are required", i, rule.Label))
		}
		if rule.Mode != ModeAbsolute && rule.Mode != ModeRelative {
			errs = append(errs, fmt.Errorf("tier %d (%s): unknown mode %s", i, rule.Label, rule.Mode))
		}

		if i > 0 {
			prev := rs[i-1]
			if !rule.Bounded() || *rule.MaxDays != prev.MinDays {
				errs = append(errs, fmt.Errorf("tier %d (%s): must end at %d where tier %d (%s) starts", i, rule.Label, prev.MinDays, i-1, prev.Label))
			}
		}
	}

	if unbounded != 1 {
		errs = append(errs, fmt.Errorf("exactly one unbounded tier required, found %d", unbounded))
	}
	if last := rs[len(rs)-1]; last.MinDays != 0 {
		errs = append(errs, fmt.Errorf("last tier (%s) must start at 0 days, starts at %d", last.Label, last.MinDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRuleSet, errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy of the rule set
func (rs RuleSet) Clone() RuleSet {
	if rs == nil {
		return nil
	}
	out := make(RuleSet, len(rs))
	for i, rule := range rs {
		out[i] = rule.clone()
	}
	return out
}

// RuleBook holds the rule sets of both origins under one version
type RuleBook struct {
	Version  int     `json:"version" toml:"version"`
	Domestic RuleSet `json:"domestic" toml:"domestic"`
	Import   RuleSet `json:"import" toml:"import"`
}

// For returns the rule set that applies to origin
func (b RuleBook) For(origin Origin) RuleSet {
	if origin == OriginDomestic {
		return b.Domestic
	}
	return b.Import
}

// Validate validates both rule sets
func (b RuleBook) Validate() error {
	var errs []error
	if err := b.Domestic.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("domestic: %w", err))
	}
	if err := b.Import.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("import: %w", err))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of the rule book
func (b RuleBook) Clone() RuleBook {
	return RuleBook{
		Version:  b.Version,
		Domestic: b.Domestic.Clone(),
		Import:   b.Import.Clone(),
	}
}
