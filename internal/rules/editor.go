package rules

import (
	"context"
	"log/slog"
	"sync"

	"github.com/solatis/stagekeeper/internal/types"
)

// Operation is a pure edit of a rule. It returns the next value or an error;
// on error the editor keeps the previous value.
type Operation func(types.Rule) (types.Rule, error)

// Editor owns one rule and serializes edits to it. Each Apply replaces the
// whole value, so readers holding an earlier Snapshot are unaffected.
type Editor struct {
	mu      sync.RWMutex
	rule    types.Rule
	catalog *Catalog
	logger  *slog.Logger
	repairs []Repair
}

// NewEditor returns an editor holding a normalized copy of initial.
func NewEditor(initial types.Rule, cat *Catalog, logger *slog.Logger) *Editor {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		rule:    cat.NormalizeRule(AssignIDs(initial)),
		catalog: cat,
		logger:  logger.With("component", "rule_editor"),
	}
}

// Apply runs op against the current rule and installs the result.
// Refusals (ErrLastCondition, ErrLastStage) are logged at warn level and
// returned; the rule is left unchanged.
func (e *Editor) Apply(op Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(op)
}

func (e *Editor) applyLocked(op Operation) error {
	next, err := op(CloneRule(e.rule))
	if err != nil {
		e.logger.Warn("edit refused", "error", err)
		return err
	}
	e.rule = e.catalog.NormalizeRule(next)
	return nil
}

// RemoveStage removes a stage and records any references detached by
// renumbering. Repairs are recorded in the order removals are applied.
func (e *Editor) RemoveStage(id types.StageID) ([]Repair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var repairs []Repair
	err := e.applyLocked(func(r types.Rule) (types.Rule, error) {
		next, rs, err := RemoveStageFromRule(r, id)
		repairs = rs
		return next, err
	})
	if err != nil {
		return nil, err
	}
	for _, rp := range repairs {
		e.logger.Warn("reference detached",
			"kind", rp.Kind,
			"stage", rp.StageNumber,
			"condition", rp.ConditionID,
			"target", rp.Target)
	}
	e.repairs = append(e.repairs, repairs...)
	return repairs, nil
}

// Snapshot returns a copy of the current rule.
func (e *Editor) Snapshot() types.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CloneRule(e.rule)
}

// Repairs returns every repair recorded since the editor was created.
func (e *Editor) Repairs() []Repair {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Repair(nil), e.repairs...)
}

// Catalog returns the catalog the editor normalizes against.
func (e *Editor) Catalog() *Catalog {
	return e.catalog
}

// Validate validates the current rule.
func (e *Editor) Validate(ctx context.Context) (ValidationErrors, error) {
	return Validate(ctx, e.Snapshot(), e.catalog)
}

// Canonicalize validates and serializes the current rule.
func (e *Editor) Canonicalize(ctx context.Context) (Document, error) {
	return Canonicalize(ctx, e.Snapshot(), e.catalog)
}
