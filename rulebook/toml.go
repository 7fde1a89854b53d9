package rulebook

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/liamcoop/shelflife/shelflife"
)

// DecodeTOML reads a rule book artifact:
//
//	version = 2
//
//	[[domestic]]
//	min_days = 1080
//	dc_window = 750
//	store_window = 540
//	label = "T ≥ 36 months"
//
//	[[domestic]]
//	min_days = 900
//	max_days = 1080
//	...
//
// Missing display strings are filled the way the built-in tables render
// them. Unknown keys are rejected.
func DecodeTOML(r io.Reader) (shelflife.RuleBook, error) {
	var book shelflife.RuleBook
	md, err := toml.NewDecoder(r).Decode(&book)
	if err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("failed to decode rule book: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return shelflife.RuleBook{}, fmt.Errorf("failed to decode rule book: unknown keys %s", strings.Join(keys, ", "))
	}

	return FillDisplays(book), nil
}

// EncodeTOML writes book in the format read by DecodeTOML
func EncodeTOML(w io.Writer, book shelflife.RuleBook) error {
	if err := toml.NewEncoder(w).Encode(book); err != nil {
		return fmt.Errorf("failed to encode rule book: %w", err)
	}
	return nil
}
