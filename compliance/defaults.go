package compliance

import (
	"context"
	"errors"
	"fmt"
)

// DefaultChecks returns the built-in label checks
func DefaultChecks() []*Check {
	return []*Check{
		{
			ID:         "meat-origin-missing",
			Name:       "Meat origin declared",
			Reason:     "meat ingredients are missing a country of origin",
			Expression: `label.hasPorkOrBeef && label.meatOrigin == ""`,
			Active:     true,
		},
		{
			ID:         "manufacturer-name-missing",
			Name:       "Manufacturer name declared",
			Reason:     "manufacturer name is missing",
			Expression: `label.manufacturer.name == ""`,
			Active:     true,
		},
		{
			ID:         "manufacturer-phone-missing",
			Name:       "Manufacturer phone declared",
			Reason:     "manufacturer phone number is missing",
			Expression: `label.manufacturer.phone == ""`,
			Active:     true,
		},
		{
			ID:         "manufacturer-address-missing",
			Name:       "Manufacturer address declared",
			Reason:     "manufacturer address is missing",
			Expression: `label.manufacturer.address == ""`,
			Active:     true,
		},
		{
			ID:         "expiry-date-unreadable",
			Name:       "Expiry date readable",
			Reason:     "expiry date could not be read",
			Expression: `!label.expiryDateReadable`,
			Active:     true,
		},
	}
}

// SeedDefaults adds each default check the store does not already hold.
// Existing checks with the same ID are left untouched.
func SeedDefaults(ctx context.Context, store CheckStore) (int, error) {
	added := 0
	for _, check := range DefaultChecks() {
		_, err := store.Get(ctx, check.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrCheckNotFound) {
			return added, fmt.Errorf("failed to look up check %s: %w", check.ID, err)
		}
		if err := store.Add(ctx, check); err != nil {
			return added, fmt.Errorf("failed to seed check %s: %w", check.ID, err)
		}
		added++
	}
	return added, nil
}
