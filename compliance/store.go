package compliance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// CheckStore manages check persistence and retrieval
type CheckStore interface {
	// Add a new check
	Add(ctx context.Context, check *Check) error

	// Get a check by ID
	Get(ctx context.Context, id string) (*Check, error)

	// List all checks, active or not
	List(ctx context.Context) ([]*Check, error)

	// List all active checks
	ListActive(ctx context.Context) ([]*Check, error)

	// Update an existing check
	Update(ctx context.Context, check *Check) error

	// Delete a check
	Delete(ctx context.Context, id string) error
}

// InMemoryCheckStore implements CheckStore using an in-memory map
type InMemoryCheckStore struct {
	checks map[string]*Check
	now    func() time.Time
	mu     sync.RWMutex
}

// NewInMemoryCheckStore creates a new in-memory check store
func NewInMemoryCheckStore() *InMemoryCheckStore {
	return &InMemoryCheckStore{
		checks: make(map[string]*Check),
		now:    time.Now,
	}
}

// Add adds a new check and stamps CreatedAt and UpdatedAt
func (s *InMemoryCheckStore) Add(_ context.Context, check *Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checks[check.ID]; exists {
		return fmt.Errorf("%w: %s", ErrCheckExists, check.ID)
	}

	now := s.now()
	check.CreatedAt = now
	check.UpdatedAt = now
	stored := *check
	s.checks[check.ID] = &stored
	return nil
}

// Get retrieves a copy of a check by ID
func (s *InMemoryCheckStore) Get(_ context.Context, id string) (*Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	check, exists := s.checks[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCheckNotFound, id)
	}
	c := *check
	return &c, nil
}

// List returns all checks ordered by creation time
func (s *InMemoryCheckStore) List(_ context.Context) ([]*Check, error) {
	return s.collect(func(*Check) bool { return true }), nil
}

// ListActive returns the active checks ordered by creation time
func (s *InMemoryCheckStore) ListActive(_ context.Context) ([]*Check, error) {
	return s.collect(func(c *Check) bool { return c.Active }), nil
}

func (s *InMemoryCheckStore) collect(keep func(*Check) bool) []*Check {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Check{}
	for _, check := range s.checks {
		if keep(check) {
			c := *check
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *Check) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Update replaces an existing check, preserving CreatedAt
func (s *InMemoryCheckStore) Update(_ context.Context, check *Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.checks[check.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, check.ID)
	}

	check.CreatedAt = existing.CreatedAt
	check.UpdatedAt = s.now()
	stored := *check
	s.checks[check.ID] = &stored
	return nil
}

// Delete removes a check from the store
func (s *InMemoryCheckStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checks[id]; !exists {
		return fmt.Errorf("%w: %s", ErrCheckNotFound, id)
	}

	delete(s.checks, id)
	return nil
}
