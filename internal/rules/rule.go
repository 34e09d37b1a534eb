package rules

import "github.com/solatis/stagekeeper/internal/types"

// NewRule returns an AND rule with one default stage.
func NewRule() types.Rule {
	return types.Rule{
		LogicType: types.LogicAnd,
		Stages:    []types.Stage{NewStage(nil)},
	}
}

// SetLogicType changes how stages are combined.
func SetLogicType(r types.Rule, lt types.LogicType) types.Rule {
	next := CloneRule(r)
	next.LogicType = lt
	return next
}

// AddStage appends a new stage numbered len(stages)+1.
func AddStage(r types.Rule) (types.Rule, types.StageID) {
	next := CloneRule(r)
	s := NewStage(next.Stages)
	next.Stages = append(next.Stages, s)
	return next, s.ID
}

// RemoveStageFromRule removes a stage and renumbers the rest.
// See RemoveStage for refusal and repair semantics.
func RemoveStageFromRule(r types.Rule, id types.StageID) (types.Rule, []Repair, error) {
	stages, repairs, err := RemoveStage(r.Stages, id)
	if err != nil {
		return r, nil, err
	}
	next := CloneRule(r)
	next.Stages = stages
	return next, repairs, nil
}

// EditStage applies fn to the stage with the given id. The stage number is
// owned by the rule and cannot be changed by fn.
func EditStage(r types.Rule, id types.StageID, fn func(types.Stage) (types.Stage, error)) (types.Rule, error) {
	idx := indexOfStage(r.Stages, id)
	if idx < 0 {
		return r, types.ErrStageNotFound
	}
	s, err := fn(cloneStage(r.Stages[idx]))
	if err != nil {
		return r, err
	}
	s.ID = r.Stages[idx].ID
	s.StageNumber = r.Stages[idx].StageNumber
	next := CloneRule(r)
	next.Stages[idx] = s
	return next, nil
}

// EditCondition applies fn to one condition of one stage.
func EditCondition(r types.Rule, stageID types.StageID, condID types.ConditionID, fn func(types.Condition) (types.Condition, error)) (types.Rule, error) {
	return EditStage(r, stageID, func(s types.Stage) (types.Stage, error) {
		return ReplaceCondition(s, condID, func(c types.Condition) (types.Condition, error) {
			out, err := fn(c)
			if err != nil {
				return c, err
			}
			out.ID = c.ID
			return out, nil
		})
	})
}

// PatchStage applies a StagePatch to the stage with the given id.
func PatchStage(r types.Rule, id types.StageID, p StagePatch) (types.Rule, error) {
	return EditStage(r, id, func(s types.Stage) (types.Stage, error) {
		return UpdateStage(s, p), nil
	})
}

// PatchCondition applies a ConditionPatch to one condition of one stage.
func PatchCondition(r types.Rule, stageID types.StageID, condID types.ConditionID, p ConditionPatch) (types.Rule, error) {
	return EditCondition(r, stageID, condID, func(c types.Condition) (types.Condition, error) {
		return UpdateCondition(c, p), nil
	})
}

// AddConditionToStage appends a default condition to the stage.
func AddConditionToStage(r types.Rule, stageID types.StageID) (types.Rule, types.ConditionID, error) {
	var id types.ConditionID
	next, err := EditStage(r, stageID, func(s types.Stage) (types.Stage, error) {
		out, cid := AddCondition(s)
		id = cid
		return out, nil
	})
	return next, id, err
}

// RemoveConditionFromStage removes a condition, refusing to remove the last one.
func RemoveConditionFromStage(r types.Rule, stageID types.StageID, condID types.ConditionID) (types.Rule, error) {
	return EditStage(r, stageID, func(s types.Stage) (types.Stage, error) {
		return RemoveCondition(s, condID)
	})
}

// StageByID returns the stage with the given id.
func StageByID(r types.Rule, id types.StageID) (types.Stage, bool) {
	idx := indexOfStage(r.Stages, id)
	if idx < 0 {
		return types.Stage{}, false
	}
	return cloneStage(r.Stages[idx]), true
}

// AvailableStagesFor returns the legal reference targets for the stage with the given id.
func AvailableStagesFor(r types.Rule, id types.StageID) ([]int, error) {
	s, ok := StageByID(r, id)
	if !ok {
		return nil, types.ErrStageNotFound
	}
	return AvailableStages(r.Stages, s), nil
}
