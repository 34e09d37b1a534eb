package rules

import "github.com/solatis/stagekeeper/internal/types"

// ConditionPatch is a partial update of a Condition. Absent fields are left unchanged.
type ConditionPatch struct {
	AggregateFunction types.Maybe[types.AggregateFunction]
	TargetField       types.Maybe[*string]
	TimeWindow        types.Maybe[*int]
	Operator          types.Maybe[types.ConditionOperator]
	Threshold         types.Maybe[types.Threshold]
	ThresholdType     types.Maybe[types.ThresholdType]
	SelectedList      types.Maybe[*string]
	TransactionType   types.Maybe[*string]
	ReferenceStage    types.Maybe[*types.ReferenceStage]
}

// NewCondition returns a condition with default values:
// no aggregate, no target field, unset operator, empty literal threshold.
func NewCondition() types.Condition {
	return types.Condition{
		ID:                types.NewConditionID(),
		AggregateFunction: types.AggNone,
		Operator:          types.CondUnset,
		Threshold:         types.EmptyThreshold(),
		ThresholdType:     types.ThresholdLiteral,
	}
}

// UpdateCondition merges p over c and applies the condition update rules.
// The result never has a time window without an aggregate and never has a
// reference stage unless the threshold type is reference.
func UpdateCondition(c types.Condition, p ConditionPatch) types.Condition {
	next := cloneCondition(c)
	if p.AggregateFunction.Set {
		next.AggregateFunction = p.AggregateFunction.Value
	}
	if p.TargetField.Set {
		next.TargetField = cloneStringPtr(p.TargetField.Value)
	}
	if p.TimeWindow.Set {
		next.TimeWindow = cloneIntPtr(p.TimeWindow.Value)
	}
	if p.Operator.Set {
		next.Operator = p.Operator.Value
	}
	if p.Threshold.Set {
		next.Threshold = p.Threshold.Value
	}
	if p.ThresholdType.Set {
		next.ThresholdType = p.ThresholdType.Value
	}
	if p.SelectedList.Set {
		next.SelectedList = cloneStringPtr(p.SelectedList.Value)
	}
	if p.TransactionType.Set {
		next.TransactionType = cloneStringPtr(p.TransactionType.Value)
	}
	if p.ReferenceStage.Set {
		if p.ReferenceStage.Value == nil {
			next.ReferenceStage = nil
		} else {
			ref := *p.ReferenceStage.Value
			next.ReferenceStage = &ref
		}
	}
	runUpdateRules(conditionUpdateRules, c, p, &next)
	normalizeCondition(&next)
	return next
}

// SelectReferenceStage points the condition's reference at stageNumber,
// keeping the current metric or defaulting to sum.
func SelectReferenceStage(c types.Condition, stageNumber int) types.Condition {
	metric := types.MetricSum
	if c.ReferenceStage != nil {
		metric = c.ReferenceStage.Metric
	}
	return UpdateCondition(c, ConditionPatch{
		ReferenceStage: types.Some(&types.ReferenceStage{StageNumber: stageNumber, Metric: metric}),
	})
}

// SelectReferenceMetric changes the metric of an existing reference. No-op without one.
func SelectReferenceMetric(c types.Condition, metric types.Metric) types.Condition {
	if c.ReferenceStage == nil {
		return cloneCondition(c)
	}
	return UpdateCondition(c, ConditionPatch{
		ReferenceStage: types.Some(&types.ReferenceStage{StageNumber: c.ReferenceStage.StageNumber, Metric: metric}),
	})
}

// AddCondition appends a default condition to the stage.
func AddCondition(s types.Stage) (types.Stage, types.ConditionID) {
	next := cloneStage(s)
	c := NewCondition()
	next.Conditions = append(next.Conditions, c)
	return next, c.ID
}

// ReplaceCondition applies fn to the condition with the given id.
func ReplaceCondition(s types.Stage, id types.ConditionID, fn func(types.Condition) (types.Condition, error)) (types.Stage, error) {
	idx := indexOfCondition(s.Conditions, id)
	if idx < 0 {
		return s, types.ErrConditionNotFound
	}
	c, err := fn(cloneCondition(s.Conditions[idx]))
	if err != nil {
		return s, err
	}
	next := cloneStage(s)
	next.Conditions[idx] = c
	return next, nil
}

// RemoveCondition removes the condition with the given id.
// Refuses with ErrLastCondition when it is the stage's only condition;
// the stage is returned unchanged on refusal.
func RemoveCondition(s types.Stage, id types.ConditionID) (types.Stage, error) {
	if len(s.Conditions) <= 1 {
		return s, types.ErrLastCondition
	}
	idx := indexOfCondition(s.Conditions, id)
	if idx < 0 {
		return s, types.ErrConditionNotFound
	}
	next := cloneStage(s)
	next.Conditions = append(next.Conditions[:idx:idx], next.Conditions[idx+1:]...)
	return next, nil
}

// AddConditionFilter appends a new condition-level filter.
func AddConditionFilter(c types.Condition) (types.Condition, types.FilterID) {
	next := cloneCondition(c)
	filters, id := AddFilter(next.Filters)
	next.Filters = filters
	return next, id
}

// UpdateConditionFilter applies p to one of the condition's filters.
func UpdateConditionFilter(c types.Condition, id types.FilterID, p FilterPatch) (types.Condition, error) {
	filters, err := ReplaceFilter(c.Filters, id, p)
	if err != nil {
		return c, err
	}
	next := cloneCondition(c)
	next.Filters = filters
	return next, nil
}

// RemoveConditionFilter removes one of the condition's filters.
// Removing the last filter leaves the condition with no filters (null).
func RemoveConditionFilter(c types.Condition, id types.FilterID) (types.Condition, error) {
	filters, err := RemoveFilter(c.Filters, id)
	if err != nil {
		return c, err
	}
	next := cloneCondition(c)
	if len(filters) == 0 {
		filters = nil
	}
	next.Filters = filters
	return next, nil
}

func indexOfCondition(conds []types.Condition, id types.ConditionID) int {
	for i, c := range conds {
		if c.ID == id {
			return i
		}
	}
	return -1
}
