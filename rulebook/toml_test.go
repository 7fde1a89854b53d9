package rulebook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/liamcoop/shelflife/shelflife"
)

// TestTOMLRoundTripDefaultBook verifies EncodeTOML output decodes to the same tables
func TestTOMLRoundTripDefaultBook(t *testing.T) {
	want := shelflife.DefaultRuleBook()

	var buf bytes.Buffer
	if err := EncodeTOML(&buf, want); err != nil {
		t.Fatalf("EncodeTOML() failed: %v", err)
	}

	got, err := DecodeTOML(&buf)
	if err != nil {
		t.Fatalf("DecodeTOML() failed: %v\n%s", err, buf.String())
	}
	if got.Version != want.Version {
		t.Errorf("Version = %d, want %d", got.Version, want.Version)
	}
	assertSameRules(t, "domestic", got.Domestic, want.Domestic)
	assertSameRules(t, "import", got.Import, want.Import)
}

// TestDecodeTOMLFillsDisplays verifies missing display strings are rendered
func TestDecodeTOMLFillsDisplays(t *testing.T) {
	const artifact = `
version = 3

[[domestic]]
min_days = 30
dc_window = 25
store_window = 20
label = "T ≥ 1 month"

[[domestic]]
min_days = 0
max_days = 30
dc_window = "1.5"
store_window = 3
mode = "relative"
label = "T < 1 month"
store_display = "three days"
`
	book, err := DecodeTOML(strings.NewReader(artifact))
	if err != nil {
		t.Fatalf("DecodeTOML() failed: %v", err)
	}

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"absolute dc", book.Domestic[0].DCDisplay, "25 days"},
		{"absolute store", book.Domestic[0].StoreDisplay, "20 days"},
		{"relative dc", book.Domestic[1].DCDisplay, "D+1.5 days"},
		{"explicit store", book.Domestic[1].StoreDisplay, "three days"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("display = %q, want %q", tc.got, tc.want)
			}
		})
	}

	if book.Domestic[0].Mode != shelflife.ModeAbsolute || book.Domestic[1].Mode != shelflife.ModeRelative {
		t.Errorf("modes = %s, %s", book.Domestic[0].Mode, book.Domestic[1].Mode)
	}
	if book.Domestic[0].Bounded() || !book.Domestic[1].Bounded() || *book.Domestic[1].MaxDays != 30 {
		t.Error("max_days not decoded as expected")
	}
	if book.Domestic[1].DCWindow.String() != "1.5" {
		t.Errorf("dc_window = %s, want 1.5", book.Domestic[1].DCWindow)
	}
}

// TestDecodeTOMLRejectsUnknownKeys verifies typos in an artifact are reported
func TestDecodeTOMLRejectsUnknownKeys(t *testing.T) {
	const artifact = `
[[domestic]]
min_days = 0
dc_windw = 25
store_window = 20
label = "all"
`
	_, err := DecodeTOML(strings.NewReader(artifact))
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "dc_windw") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

// TestDecodeTOMLRejectsBadValues verifies malformed values fail decoding
func TestDecodeTOMLRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name     string
		artifact string
	}{
		{"syntax", `[[domestic]` + "\n"},
		{"bad mode", "[[domestic]]\nmode = \"sideways\"\n"},
		{"bad window", "[[domestic]]\ndc_window = \"soon\"\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeTOML(strings.NewReader(tc.artifact)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
