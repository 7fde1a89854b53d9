package rulebook

import (
	"context"
	"fmt"
	"os"

	"github.com/liamcoop/shelflife/shelflife"
)

// Source supplies a rule book artifact from outside the store
type Source interface {
	// Fetch reads and decodes the artifact
	Fetch(ctx context.Context) (shelflife.RuleBook, error)

	// String describes where the artifact came from; it is recorded with
	// the published version
	String() string
}

// FileSource reads a TOML artifact from the local filesystem
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(_ context.Context) (shelflife.RuleBook, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("failed to open rule book file: %w", err)
	}
	defer f.Close()

	book, err := DecodeTOML(f)
	if err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	return book, nil
}

func (s FileSource) String() string {
	return "file://" + s.Path
}
