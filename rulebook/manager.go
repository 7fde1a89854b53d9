package rulebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/liamcoop/shelflife/internal/logger"
	"github.com/liamcoop/shelflife/shelflife"
)

// Manager owns the active rule book and the engine built from it.
// Publishing or activating a version builds the new engine first and then
// swaps it in, so readers never see a half-loaded table.
type Manager struct {
	store  Store
	opts   []shelflife.Option
	engine *shelflife.Engine
	record *Record
	mu     sync.RWMutex // guards engine and record
	write  sync.Mutex   // serializes Publish/Activate
}

// NewManager creates a manager over store; opts are applied to every engine it builds
func NewManager(store Store, opts ...shelflife.Option) *Manager {
	return &Manager{
		store: store,
		opts:  opts,
	}
}

// Load activates the stored active version, publishing the built-in tables
// when the store is empty
func (m *Manager) Load(ctx context.Context) error {
	m.write.Lock()
	defer m.write.Unlock()

	record, err := m.store.Active(ctx)
	if errors.Is(err, ErrNotFound) {
		logger.Info("no active rule book, publishing built-in tables", "version", shelflife.DefaultRuleBookVersion)
		record, err = m.store.Publish(ctx, shelflife.DefaultRuleBook(), "built-in tables", "builtin")
	}
	if err != nil {
		return fmt.Errorf("failed to load rule book: %w", err)
	}

	engine, err := shelflife.NewEngine(record.Book, m.opts...)
	if err != nil {
		return fmt.Errorf("active rule book %d is invalid: %w", record.Version, err)
	}

	m.swap(engine, record)
	logger.Info("rule book loaded", "version", record.Version, "source", record.Source)
	return nil
}

// Engine returns the engine for the active rule book
func (m *Manager) Engine() *shelflife.Engine {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.engine
}

// Current returns a copy of the active record
func (m *Manager) Current() *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.record == nil {
		return nil
	}
	return m.record.clone()
}

// Store returns the underlying store
func (m *Manager) Store() Store {
	return m.store
}

// Publish fills blank display strings, validates book, stores it as a new version and makes it active
func (m *Manager) Publish(ctx context.Context, book shelflife.RuleBook, note, source string) (*Record, error) {
	book = FillDisplays(book)
	if err := ValidateDefinition(book); err != nil {
		return nil, err
	}

	m.write.Lock()
	defer m.write.Unlock()

	record, err := m.store.Publish(ctx, book, note, source)
	if err != nil {
		return nil, err
	}

	engine, err := shelflife.NewEngine(record.Book, m.opts...)
	if err != nil {
		return nil, fmt.Errorf("published rule book %d is invalid: %w", record.Version, err)
	}

	m.swap(engine, record)
	logger.Info("rule book published", "version", record.Version, "source", source, "note", note)
	return record.clone(), nil
}

// Activate rolls the active rule book to an existing version
func (m *Manager) Activate(ctx context.Context, version int) (*Record, error) {
	m.write.Lock()
	defer m.write.Unlock()

	existing, err := m.store.Get(ctx, version)
	if err != nil {
		return nil, err
	}

	engine, err := shelflife.NewEngine(existing.Book, m.opts...)
	if err != nil {
		return nil, fmt.Errorf("rule book %d is invalid: %w", version, err)
	}

	record, err := m.store.Activate(ctx, version)
	if err != nil {
		return nil, err
	}

	m.swap(engine, record)
	logger.Info("rule book activated", "version", version)
	return record.clone(), nil
}

// Import fetches an artifact from src and publishes it
func (m *Manager) Import(ctx context.Context, src Source, note string) (*Record, error) {
	book, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return m.Publish(ctx, book, note, src.String())
}

// Sync imports src unless its tables match the active version.
// changed reports whether a new version was published.
func (m *Manager) Sync(ctx context.Context, src Source, note string) (record *Record, changed bool, err error) {
	book, err := src.Fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if current := m.Current(); current != nil && sameTables(current.Book, book) {
		logger.Debug("rule book source unchanged", "source", src.String(), "version", current.Version)
		return current, false, nil
	}

	record, err = m.Publish(ctx, book, note, src.String())
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// sameTables compares tiers, ignoring the version number
func sameTables(a, b shelflife.RuleBook) bool {
	a.Version, b.Version = 0, 0
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func (m *Manager) swap(engine *shelflife.Engine, record *Record) {
	m.mu.Lock()
	m.engine = engine
	m.record = record
	m.mu.Unlock()
}
