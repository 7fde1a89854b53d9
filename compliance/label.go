package compliance

import (
	"strings"

	"github.com/liamcoop/shelflife/shelflife"
)

// AllergenCategories lists the regulated allergen categories a label is read for
var AllergenCategories = []string{
	"Crustacean shellfish and products thereof",
	"Mango and products thereof",
	"Peanuts and products thereof",
	"Milk, goat milk and products thereof",
	"Eggs and products thereof",
	"Tree nuts and products thereof",
	"Sesame and products thereof",
	"Cereals containing gluten and products thereof",
	"Soybeans and products thereof",
	"Fish and products thereof",
	"Sulfites",
}

// Allergen is the reading for one allergen category
type Allergen struct {
	Category string `json:"category"`
	Found    bool   `json:"found"`
	Notes    string `json:"notes,omitempty"`
}

// Manufacturer identifies who is responsible for the product
type Manufacturer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// LabelDates are the dates printed on the label
type LabelDates struct {
	ManufactureDate    string `json:"manufactureDate,omitempty"`
	ExpiryDate         string `json:"expiryDate"`
	TotalShelfLifeDays int    `json:"totalShelfLifeDays"`
}

// Label is the structured reading of a product label supplied by the
// upstream label-analysis service
type Label struct {
	ProductName   string       `json:"productName"`
	HasPorkOrBeef bool         `json:"hasPorkOrBeef"`
	MeatOrigin    string       `json:"meatOrigin,omitempty"`
	Allergens     []Allergen   `json:"allergens"`
	Manufacturer  Manufacturer `json:"manufacturer"`
	IsDomestic    bool         `json:"isDomestic"`
	PriceVisible  bool         `json:"priceVisible"`
	Price         string       `json:"price,omitempty"`
	Dates         LabelDates   `json:"dates"`
}

// FoundAllergens returns the categories marked as present, in label order
func (l *Label) FoundAllergens() []string {
	found := []string{}
	for _, a := range l.Allergens {
		if a.Found {
			found = append(found, a.Category)
		}
	}
	return found
}

// Request maps the label onto an engine request
func (l *Label) Request() shelflife.Request {
	return shelflife.Request{
		ExpiryDate:         l.Dates.ExpiryDate,
		TotalShelfLifeDays: l.Dates.TotalShelfLifeDays,
		IsDomestic:         l.IsDomestic,
		ManufactureDate:    l.Dates.ManufactureDate,
	}
}

// Facts builds the CEL activation for the label.
// Every key is present so expressions never hit a missing field; strings are
// trimmed so whitespace-only values compare equal to "".
// Derived fields:
//   - expiryDateReadable: the expiry date parses as a date
//   - foundAllergens: categories marked as present
func (l *Label) Facts() map[string]any {
	allergens := make([]any, 0, len(l.Allergens))
	for _, a := range l.Allergens {
		allergens = append(allergens, map[string]any{
			"category": strings.TrimSpace(a.Category),
			"found":    a.Found,
			"notes":    strings.TrimSpace(a.Notes),
		})
	}

	found := make([]any, 0, len(l.Allergens))
	for _, c := range l.FoundAllergens() {
		found = append(found, c)
	}

	_, err := shelflife.ParseDate(l.Dates.ExpiryDate)

	return map[string]any{
		"label": map[string]any{
			"productName":   strings.TrimSpace(l.ProductName),
			"hasPorkOrBeef": l.HasPorkOrBeef,
			"meatOrigin":    strings.TrimSpace(l.MeatOrigin),
			"allergens":     allergens,
			"manufacturer": map[string]any{
				"name":    strings.TrimSpace(l.Manufacturer.Name),
				"phone":   strings.TrimSpace(l.Manufacturer.Phone),
				"address": strings.TrimSpace(l.Manufacturer.Address),
			},
			"isDomestic":   l.IsDomestic,
			"priceVisible": l.PriceVisible,
			"price":        strings.TrimSpace(l.Price),
			"dates": map[string]any{
				"manufactureDate":    strings.TrimSpace(l.Dates.ManufactureDate),
				"expiryDate":         strings.TrimSpace(l.Dates.ExpiryDate),
				"totalShelfLifeDays": int64(l.Dates.TotalShelfLifeDays),
			},
			"expiryDateReadable": err == nil,
			"foundAllergens":     found,
		},
	}
}
