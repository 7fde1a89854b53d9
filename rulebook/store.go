package rulebook

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/liamcoop/shelflife/shelflife"
)

// ErrNotFound is returned when a version does not exist or no rule book is active
var ErrNotFound = errors.New("rule book not found")

// Record is one published version of the rule tables
type Record struct {
	Version   int                `json:"version"`
	Note      string             `json:"note,omitempty"`
	Source    string             `json:"source,omitempty"`
	Book      shelflife.RuleBook `json:"definition"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Store persists rule book versions. Exactly one version is active once
// anything has been published.
type Store interface {
	// Active returns the active version, or ErrNotFound
	Active(ctx context.Context) (*Record, error)

	// Get returns a version by number, or ErrNotFound
	Get(ctx context.Context, version int) (*Record, error)

	// List returns every version, newest first
	List(ctx context.Context) ([]*Record, error)

	// Publish stores book under the next version number and activates it.
	// The stored book's Version is set to the assigned number.
	Publish(ctx context.Context, book shelflife.RuleBook, note, source string) (*Record, error)

	// Activate makes an existing version the active one
	Activate(ctx context.Context, version int) (*Record, error)
}

// MemoryStore implements Store in memory
type MemoryStore struct {
	records []*Record // ascending by version
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Active(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.Active {
			return r.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: no active version", ErrNotFound)
}

func (s *MemoryStore) Get(_ context.Context, version int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r := s.find(version); r != nil {
		return r.clone(), nil
	}
	return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, r := range slices.Backward(s.records) {
		out = append(out, r.clone())
	}
	return out, nil
}

func (s *MemoryStore) Publish(_ context.Context, book shelflife.RuleBook, note, source string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	if n := len(s.records); n > 0 {
		version = s.records[n-1].Version + 1
	}

	book = book.Clone()
	book.Version = version
	for _, r := range s.records {
		r.Active = false
	}

	r := &Record{
		Version:   version,
		Note:      note,
		Source:    source,
		Book:      book,
		Active:    true,
		CreatedAt: s.now(),
	}
	s.records = append(s.records, r)
	return r.clone(), nil
}

func (s *MemoryStore) Activate(_ context.Context, version int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.find(version)
	if target == nil {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}
	for _, r := range s.records {
		r.Active = r == target
	}
	return target.clone(), nil
}

// find must be called with mu held
func (s *MemoryStore) find(version int) *Record {
	for _, r := range s.records {
		if r.Version == version {
			return r
		}
	}
	return nil
}

func (r *Record) clone() *Record {
	c := *r
	c.Book = r.Book.Clone()
	return &c
}
