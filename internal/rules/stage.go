package rules

import (
	"sort"
	"strings"

	"github.com/solatis/stagekeeper/internal/types"
)

/*
 * Stage operations and renumbering.
 *
 * Stage numbers are always the dense range 1..N in list order. Removal
 * renumbers survivors by their previous stage number (not slice position)
 * and then repairs cross-stage references:
 *
 *   1. A reference to a surviving stage is remapped to its new number.
 *   2. A reference that does not resolve to a strictly earlier stage after
 *      remapping (removed target, never-existing target, forward or self
 *      reference) is detached exactly as a user edit would detach it:
 *        dependsOnStage -> null (clears timeRelation, timeWindowDays)
 *        referenceStage -> thresholdType literal, threshold "", no reference
 *
 * Each detachment is returned as a Repair so hosts can surface it.
 */

// StagePatch is a partial update of a Stage. Absent fields are left unchanged.
// Conditions, correlation keys and row filters have dedicated operations.
type StagePatch struct {
	DependsOnStage      types.Maybe[*int]
	TimeRelation        types.Maybe[types.TimeRelation]
	TimeWindowDays      types.Maybe[*int]
	GroupBy             types.Maybe[types.GroupBy]
	OutputName          types.Maybe[*string]
	OutputMode          types.Maybe[types.OutputMode]
	StageTimeWindowDays types.Maybe[*int]
	Metadata            types.Maybe[map[string]string]
}

// RepairKind identifies what a renumbering repair detached.
type RepairKind string

const (
	// RepairDependencyDetached means a stage's dependsOnStage was cleared.
	RepairDependencyDetached RepairKind = "dependency_detached"
	// RepairReferenceDetached means a condition's referenceStage was cleared.
	RepairReferenceDetached RepairKind = "reference_detached"
)

// Repair records one reference detached during renumbering.
type Repair struct {
	Kind        RepairKind
	StageNumber int               // owning stage, new numbering
	ConditionID types.ConditionID // empty for dependency repairs
	Target      int               // referenced stage number before removal
}

// NewStage returns a stage numbered after existing, with one default condition
// and aggregates output.
func NewStage(existing []types.Stage) types.Stage {
	return types.Stage{
		ID:              types.NewStageID(),
		StageNumber:     len(existing) + 1,
		OutputMode:      types.OutputAggregates,
		CorrelationKeys: []string{},
		RowFilters:      []types.Filter{},
		Conditions:      []types.Condition{NewCondition()},
	}
}

// UpdateStage merges p over s and applies the stage update rules.
// Clearing dependsOnStage always clears timeRelation and timeWindowDays.
func UpdateStage(s types.Stage, p StagePatch) types.Stage {
	next := cloneStage(s)
	if p.DependsOnStage.Set {
		next.DependsOnStage = cloneIntPtr(p.DependsOnStage.Value)
	}
	if p.TimeRelation.Set {
		next.TimeRelation = p.TimeRelation.Value
	}
	if p.TimeWindowDays.Set {
		next.TimeWindowDays = cloneIntPtr(p.TimeWindowDays.Value)
	}
	if p.GroupBy.Set {
		next.GroupBy = p.GroupBy.Value
	}
	if p.OutputName.Set {
		next.OutputName = cloneStringPtr(p.OutputName.Value)
	}
	if p.OutputMode.Set {
		next.OutputMode = p.OutputMode.Value
	}
	if p.StageTimeWindowDays.Set {
		next.StageTimeWindowDays = cloneIntPtr(p.StageTimeWindowDays.Value)
	}
	if p.Metadata.Set {
		next.Metadata = nil
		if p.Metadata.Value != nil {
			next.Metadata = make(map[string]string, len(p.Metadata.Value))
			for k, v := range p.Metadata.Value {
				next.Metadata[k] = v
			}
		}
	}
	runUpdateRules(stageUpdateRules, s, p, &next)
	normalizeStage(&next)
	return next
}

// AvailableStages returns the stage numbers strictly less than forStage's,
// sorted ascending: the legal targets for forStage's dependsOnStage and for
// any referenceStage inside it.
func AvailableStages(all []types.Stage, forStage types.Stage) []int {
	out := make([]int, 0, len(all))
	for _, s := range all {
		if s.StageNumber < forStage.StageNumber {
			out = append(out, s.StageNumber)
		}
	}
	sort.Ints(out)
	return out
}

// AddCorrelationKey adds key with set semantics; re-adding is a no-op.
// Blank keys are ignored.
func AddCorrelationKey(s types.Stage, key string) types.Stage {
	next := cloneStage(s)
	key = strings.TrimSpace(key)
	if key == "" {
		return next
	}
	for _, k := range next.CorrelationKeys {
		if k == key {
			return next
		}
	}
	next.CorrelationKeys = append(next.CorrelationKeys, key)
	return next
}

// RemoveCorrelationKey removes key, preserving insertion order of the rest.
// key is trimmed as in AddCorrelationKey.
func RemoveCorrelationKey(s types.Stage, key string) types.Stage {
	next := cloneStage(s)
	key = strings.TrimSpace(key)
	keys := make([]string, 0, len(next.CorrelationKeys))
	for _, k := range next.CorrelationKeys {
		if k != key {
			keys = append(keys, k)
		}
	}
	next.CorrelationKeys = keys
	return next
}

// AddRowFilter appends a new stage-level row filter.
func AddRowFilter(s types.Stage) (types.Stage, types.FilterID) {
	next := cloneStage(s)
	filters, id := AddFilter(next.RowFilters)
	next.RowFilters = filters
	return next, id
}

// UpdateRowFilter applies p to one of the stage's row filters.
func UpdateRowFilter(s types.Stage, id types.FilterID, p FilterPatch) (types.Stage, error) {
	filters, err := ReplaceFilter(s.RowFilters, id, p)
	if err != nil {
		return s, err
	}
	next := cloneStage(s)
	next.RowFilters = filters
	return next, nil
}

// RemoveRowFilter removes one of the stage's row filters.
func RemoveRowFilter(s types.Stage, id types.FilterID) (types.Stage, error) {
	filters, err := RemoveFilter(s.RowFilters, id)
	if err != nil {
		return s, err
	}
	next := cloneStage(s)
	next.RowFilters = filters
	return next, nil
}

// RemoveStage removes the stage with the given id, renumbers the survivors
// to 1..N by previous stage number, and repairs cross-stage references.
// Refuses with ErrLastStage when it is the only stage; stages are returned
// unchanged on refusal.
func RemoveStage(stages []types.Stage, id types.StageID) ([]types.Stage, []Repair, error) {
	if len(stages) <= 1 {
		return stages, nil, types.ErrLastStage
	}
	idx := indexOfStage(stages, id)
	if idx < 0 {
		return stages, nil, types.ErrStageNotFound
	}

	survivors := make([]types.Stage, 0, len(stages)-1)
	for i, s := range stages {
		if i != idx {
			survivors = append(survivors, cloneStage(s))
		}
	}
	next, repairs := Renumber(survivors)
	return next, repairs, nil
}

// Renumber orders stages by their current stage number, assigns 1..N, remaps
// references to surviving stages and detaches references that no longer name
// an earlier stage.
func Renumber(stages []types.Stage) ([]types.Stage, []Repair) {
	out := cloneStages(stages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StageNumber < out[j].StageNumber
	})

	remap := make(map[int]int, len(out))
	for i := range out {
		remap[out[i].StageNumber] = i + 1
	}
	for i := range out {
		out[i].StageNumber = i + 1
	}

	var repairs []Repair
	for i := range out {
		s := &out[i]
		if s.DependsOnStage != nil {
			old := *s.DependsOnStage
			if n, ok := remap[old]; ok && n < s.StageNumber {
				s.DependsOnStage = types.IntPtr(n)
			} else {
				*s = UpdateStage(*s, StagePatch{DependsOnStage: types.Some[*int](nil)})
				repairs = append(repairs, Repair{
					Kind:        RepairDependencyDetached,
					StageNumber: s.StageNumber,
					Target:      old,
				})
			}
		}
		for j := range s.Conditions {
			c := &s.Conditions[j]
			if c.ReferenceStage == nil {
				continue
			}
			old := c.ReferenceStage.StageNumber
			if n, ok := remap[old]; ok && n < s.StageNumber {
				c.ReferenceStage.StageNumber = n
				continue
			}
			*c = UpdateCondition(*c, ConditionPatch{ThresholdType: types.Some(types.ThresholdLiteral)})
			repairs = append(repairs, Repair{
				Kind:        RepairReferenceDetached,
				StageNumber: s.StageNumber,
				ConditionID: c.ID,
				Target:      old,
			})
		}
	}
	return out, repairs
}

func indexOfStage(stages []types.Stage, id types.StageID) int {
	for i, s := range stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}
