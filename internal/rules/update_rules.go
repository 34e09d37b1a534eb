package rules

import "github.com/solatis/stagekeeper/internal/types"

/*
 * Update rules: side effects of partial updates.
 *
 * Each entity's Update merges a patch over the current value and then runs
 * its update rules in table order. A rule fires when its trigger matches the
 * (previous value, patch) pair and clears the listed fields. The invariants
 * of the model are exactly what these tables plus the normalize* passes
 * establish:
 *
 *   Filter:    operator changed            -> value, listId
 *   Condition: aggregateFunction = none    -> timeWindow
 *              targetField changed         -> threshold, selectedList
 *              thresholdType present       -> threshold
 *              thresholdType != reference  -> referenceStage
 *   Stage:     dependsOnStage = null       -> timeRelation, timeWindowDays
 *
 * The normalize passes run after the table and enforce the resulting
 * guarantees even for patches that set a dependent field directly (e.g. a
 * referenceStage on a literal condition).
 */

// updateRule clears fields of T when trigger matches.
type updateRule[T, P any] struct {
	name    string
	clears  []string
	trigger func(prev T, p P) bool
	apply   func(v *T)
}

func runUpdateRules[T, P any](table []updateRule[T, P], prev T, p P, next *T) {
	for _, r := range table {
		if r.trigger(prev, p) {
			r.apply(next)
		}
	}
}

var filterUpdateRules = []updateRule[types.Filter, FilterPatch]{
	{
		name:   "operator change resets value and list",
		clears: []string{"value", "listId"},
		trigger: func(prev types.Filter, p FilterPatch) bool {
			return p.Operator.Set && p.Operator.Value != prev.Operator
		},
		apply: func(f *types.Filter) {
			f.Value = types.NullValue()
			f.ListID = nil
		},
	},
}

var conditionUpdateRules = []updateRule[types.Condition, ConditionPatch]{
	{
		name:   "aggregate none clears time window",
		clears: []string{"timeWindow"},
		trigger: func(_ types.Condition, p ConditionPatch) bool {
			return p.AggregateFunction.Set && p.AggregateFunction.Value == types.AggNone
		},
		apply: func(c *types.Condition) {
			c.TimeWindow = nil
		},
	},
	{
		name:   "target field change resets threshold and list",
		clears: []string{"threshold", "selectedList"},
		trigger: func(prev types.Condition, p ConditionPatch) bool {
			return p.TargetField.Set && !equalStringPtr(p.TargetField.Value, prev.TargetField)
		},
		apply: func(c *types.Condition) {
			c.Threshold = types.EmptyThreshold()
			c.SelectedList = nil
		},
	},
	{
		name:   "threshold type selection resets threshold",
		clears: []string{"threshold"},
		trigger: func(_ types.Condition, p ConditionPatch) bool {
			return p.ThresholdType.Set
		},
		apply: func(c *types.Condition) {
			c.Threshold = types.EmptyThreshold()
		},
	},
	{
		name:   "non-reference threshold type clears reference stage",
		clears: []string{"referenceStage"},
		trigger: func(_ types.Condition, p ConditionPatch) bool {
			return p.ThresholdType.Set && p.ThresholdType.Value != types.ThresholdReference
		},
		apply: func(c *types.Condition) {
			c.ReferenceStage = nil
		},
	},
}

var stageUpdateRules = []updateRule[types.Stage, StagePatch]{
	{
		name:   "detaching dependency clears temporal qualifiers",
		clears: []string{"timeRelation", "timeWindowDays"},
		trigger: func(_ types.Stage, p StagePatch) bool {
			return p.DependsOnStage.Set && p.DependsOnStage.Value == nil
		},
		apply: func(s *types.Stage) {
			s.TimeRelation = types.RelationNone
			s.TimeWindowDays = nil
		},
	},
	{
		name:   "attaching dependency defaults relation to within",
		clears: nil,
		trigger: func(prev types.Stage, p StagePatch) bool {
			return p.DependsOnStage.Set && p.DependsOnStage.Value != nil && prev.DependsOnStage == nil
		},
		apply: func(s *types.Stage) {
			if s.TimeRelation == types.RelationNone {
				s.TimeRelation = types.RelationWithin
			}
		},
	},
}

func normalizeFilter(f *types.Filter) {
	if f.Operator.IsListBased() {
		f.Value = types.NullValue()
	} else {
		f.ListID = nil
	}
}

func normalizeCondition(c *types.Condition) {
	if c.AggregateFunction == types.AggNone {
		c.TimeWindow = nil
	}
	if c.ThresholdType != types.ThresholdReference {
		c.ReferenceStage = nil
	}
}

func normalizeStage(s *types.Stage) {
	if s.DependsOnStage == nil {
		s.TimeRelation = types.RelationNone
		s.TimeWindowDays = nil
	}
}
