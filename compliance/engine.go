package compliance

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/shelflife/internal/logger"
)

// costLimit bounds the work a single check may do on one label
const costLimit = 1000000

// Engine compiles compliance checks to CEL programs and evaluates them
// against labels. Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	store    CheckStore
	cache    ChecksCache
	programs map[string]cel.Program // checkID -> compiled program
	mu       sync.RWMutex
}

// NewEnv returns the CEL environment checks are compiled in.
// Labels are exposed as the dynamic variable "label" (see Label.Facts).
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("label", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates an engine over store and compiles every active check
func NewEngine(ctx context.Context, store CheckStore) (*Engine, error) {
	return NewEngineWithCache(ctx, store, NewInMemoryChecksCache(DefaultCacheConfig()))
}

// NewEngineWithCache is NewEngine with a caller-supplied active-check cache
func NewEngineWithCache(ctx context.Context, store CheckStore, cache ChecksCache) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    cache,
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to compile checks: %w", err)
	}

	return en, nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("compile error: expression yields %s, want bool", ast.OutputType())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Compile compiles a check expression and caches the program under checkID
func (en *Engine) Compile(checkID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[checkID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAll compiles all active checks from the store and primes the cache
func (en *Engine) CompileAll(ctx context.Context) error {
	checks, err := en.store.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, check := range checks {
		if err := en.Compile(check.ID, check.Expression); err != nil {
			return fmt.Errorf("failed to compile check %s: %w", check.ID, err)
		}
	}

	en.cache.Set(checks)

	return nil
}

// Evaluate runs a single check against label
func (en *Engine) Evaluate(ctx context.Context, checkID string, label *Label) (*EvaluationResult, error) {
	check, err := en.store.Get(ctx, checkID)
	if err != nil {
		return nil, err
	}

	result := en.run(ctx, check, label.Facts())
	return result, result.Error
}

// EvaluateAll runs every active check against label.
// A check that fails to evaluate is recorded in its result and the
// remaining checks still run.
func (en *Engine) EvaluateAll(ctx context.Context, label *Label) ([]*EvaluationResult, error) {
	checks := en.cache.Get()
	if checks == nil {
		var err error
		checks, err = en.store.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		en.cache.Set(checks)
	}

	facts := label.Facts()
	results := make([]*EvaluationResult, 0, len(checks))
	for _, check := range checks {
		result := en.run(ctx, check, facts)
		if result.Error != nil {
			logger.Warn("compliance check failed to evaluate", "check_id", check.ID, "error", result.Error)
		} else {
			logger.Trace("compliance check evaluated", "check_id", check.ID, "flagged", result.Flagged)
		}
		results = append(results, result)
	}

	return results, nil
}

// Findings evaluates every active check and returns the outstanding problems
func (en *Engine) Findings(ctx context.Context, label *Label) ([]Finding, error) {
	results, err := en.EvaluateAll(ctx, label)
	if err != nil {
		return nil, err
	}

	findings := []Finding{}
	for _, r := range results {
		if f, ok := r.Finding(); ok {
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func (en *Engine) run(ctx context.Context, check *Check, facts map[string]any) *EvaluationResult {
	result := &EvaluationResult{
		CheckID:   check.ID,
		CheckName: check.Name,
		Reason:    check.Reason,
	}

	en.mu.RLock()
	prog, exists := en.programs[check.ID]
	en.mu.RUnlock()

	if !exists {
		// inactive checks are not compiled at startup
		var err error
		if prog, err = en.compile(check.Expression); err != nil {
			result.Error = fmt.Errorf("check %s: %w", check.ID, err)
			return result
		}
		en.mu.Lock()
		en.programs[check.ID] = prog
		en.mu.Unlock()
	}

	out, details, err := prog.ContextEval(ctx, facts)
	if err != nil {
		result.Error = err
		return result
	}

	flagged, ok := out.Value().(bool)
	if !ok {
		result.Error = fmt.Errorf("check %s returned %s, want bool", check.ID, out.Type())
		return result
	}

	result.Flagged = flagged
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// AddCheck validates that the check compiles, then stores it
func (en *Engine) AddCheck(ctx context.Context, c *Check) error {
	if _, err := en.store.Get(ctx, c.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrCheckExists, c.ID)
	}

	prog, err := en.compile(c.Expression)
	if err != nil {
		return fmt.Errorf("check validation failed: %w", err)
	}

	if err := en.store.Add(ctx, c); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[c.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	logger.Info("compliance check added", "check_id", c.ID, "name", c.Name, "active", c.Active)

	return nil
}

// UpdateCheck validates the new expression, stores the check and swaps
// the compiled program. A failed update leaves the previous program in place.
func (en *Engine) UpdateCheck(ctx context.Context, c *Check) error {
	prog, err := en.compile(c.Expression)
	if err != nil {
		return fmt.Errorf("check validation failed: %w", err)
	}

	if err := en.store.Update(ctx, c); err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[c.ID] = prog
	en.mu.Unlock()

	en.cache.Invalidate()
	logger.Info("compliance check updated", "check_id", c.ID, "active", c.Active)

	return nil
}

// DeleteCheck removes a check from the store and its compiled program
func (en *Engine) DeleteCheck(ctx context.Context, checkID string) error {
	if err := en.store.Delete(ctx, checkID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, checkID)
	en.mu.Unlock()

	en.cache.Invalidate()
	logger.Info("compliance check deleted", "check_id", checkID)

	return nil
}

// Store returns the engine's check store
func (en *Engine) Store() CheckStore {
	return en.store
}
