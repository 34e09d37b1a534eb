package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/stagekeeper/internal/types"
)

// threeStages builds stages 1..3 where stage 2 depends on 1 and stage 3
// references stage 2 from its first condition.
func threeStages() []types.Stage {
	s1 := NewStage(nil)
	s2 := NewStage([]types.Stage{s1})
	s2 = UpdateStage(s2, StagePatch{DependsOnStage: types.Some(types.IntPtr(1))})
	s3 := NewStage([]types.Stage{s1, s2})
	s3.Conditions[0] = UpdateCondition(s3.Conditions[0], ConditionPatch{
		TargetField:   types.Some(types.StringPtr("amount")),
		ThresholdType: types.Some(types.ThresholdReference),
	})
	s3.Conditions[0] = SelectReferenceStage(s3.Conditions[0], 2)
	return []types.Stage{s1, s2, s3}
}

func TestNewStage_Defaults(t *testing.T) {
	existing := []types.Stage{NewStage(nil), NewStage(nil)}
	s := NewStage(existing)

	if s.StageNumber != 3 {
		t.Errorf("StageNumber = %d, want 3", s.StageNumber)
	}
	if len(s.Conditions) != 1 {
		t.Errorf("len(Conditions) = %d, want 1", len(s.Conditions))
	}
	if s.OutputMode != types.OutputAggregates {
		t.Errorf("OutputMode = %q, want aggregates", s.OutputMode)
	}
	if s.CorrelationKeys == nil || len(s.CorrelationKeys) != 0 {
		t.Errorf("CorrelationKeys = %v, want empty non-nil", s.CorrelationKeys)
	}
	if s.RowFilters == nil || len(s.RowFilters) != 0 {
		t.Errorf("RowFilters = %v, want empty non-nil", s.RowFilters)
	}
}

func TestUpdateStage_Dependency(t *testing.T) {
	s := NewStage([]types.Stage{NewStage(nil)})

	s = UpdateStage(s, StagePatch{DependsOnStage: types.Some(types.IntPtr(1))})
	if s.TimeRelation != types.RelationWithin {
		t.Errorf("TimeRelation = %q, want within after attaching", s.TimeRelation)
	}

	s = UpdateStage(s, StagePatch{
		TimeRelation:   types.Some(types.RelationAfter),
		TimeWindowDays: types.Some(types.IntPtr(14)),
	})
	if s.TimeRelation != types.RelationAfter || s.TimeWindowDays == nil || *s.TimeWindowDays != 14 {
		t.Fatalf("stage = %+v, want after/14", s)
	}

	s = UpdateStage(s, StagePatch{DependsOnStage: types.Some[*int](nil)})
	if s.DependsOnStage != nil {
		t.Errorf("DependsOnStage = %d, want nil", *s.DependsOnStage)
	}
	if s.TimeRelation != types.RelationNone {
		t.Errorf("TimeRelation = %q, want none", s.TimeRelation)
	}
	if s.TimeWindowDays != nil {
		t.Errorf("TimeWindowDays = %d, want nil", *s.TimeWindowDays)
	}
}

func TestUpdateStage_AbsentFieldsUnchanged(t *testing.T) {
	s := NewStage(nil)
	s.OutputName = types.StringPtr("velocity")

	got := UpdateStage(s, StagePatch{OutputMode: types.Some(types.OutputRows)})
	if got.OutputName == nil || *got.OutputName != "velocity" {
		t.Errorf("OutputName = %v, want velocity", got.OutputName)
	}
	if got.OutputMode != types.OutputRows {
		t.Errorf("OutputMode = %q, want rows", got.OutputMode)
	}

	got = UpdateStage(got, StagePatch{OutputName: types.Some[*string](nil)})
	if got.OutputName != nil {
		t.Errorf("OutputName = %q, want nil when set to null", *got.OutputName)
	}
}

func TestAvailableStages(t *testing.T) {
	stages := threeStages()

	tests := []struct {
		stage int
		want  []int
	}{
		{stage: 0, want: []int{}},
		{stage: 1, want: []int{1}},
		{stage: 2, want: []int{1, 2}},
	}
	for _, tt := range tests {
		got := AvailableStages(stages, stages[tt.stage])
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("AvailableStages(stage %d) = %v, want %v", tt.stage+1, got, tt.want)
		}
	}
}

func TestCorrelationKeys(t *testing.T) {
	s := NewStage(nil)
	s = AddCorrelationKey(s, "customer_id")
	s = AddCorrelationKey(s, "account_id")
	s = AddCorrelationKey(s, "customer_id")
	s = AddCorrelationKey(s, "  ")

	want := []string{"customer_id", "account_id"}
	if !reflect.DeepEqual(s.CorrelationKeys, want) {
		t.Fatalf("CorrelationKeys = %v, want %v", s.CorrelationKeys, want)
	}

	s = RemoveCorrelationKey(s, "customer_id")
	if !reflect.DeepEqual(s.CorrelationKeys, []string{"account_id"}) {
		t.Errorf("CorrelationKeys = %v, want [account_id]", s.CorrelationKeys)
	}
}

func TestCorrelationKeys_WhitespaceSymmetric(t *testing.T) {
	s := AddCorrelationKey(NewStage(nil), " merchant ")
	if !reflect.DeepEqual(s.CorrelationKeys, []string{"merchant"}) {
		t.Fatalf("CorrelationKeys = %v, want [merchant]", s.CorrelationKeys)
	}

	s = RemoveCorrelationKey(s, " merchant ")
	if len(s.CorrelationKeys) != 0 {
		t.Errorf("CorrelationKeys = %v, want empty", s.CorrelationKeys)
	}
}

func TestRowFilters(t *testing.T) {
	s := NewStage(nil)
	s, id := AddRowFilter(s)
	s, err := UpdateRowFilter(s, id, FilterPatch{Operator: types.Some(types.FilterIn), ListID: types.Some(types.StringPtr("x"))})
	if err != nil {
		t.Fatalf("UpdateRowFilter() error = %v", err)
	}
	if s.RowFilters[0].Operator != types.FilterIn {
		t.Errorf("Operator = %q, want in", s.RowFilters[0].Operator)
	}

	s, err = RemoveRowFilter(s, id)
	if err != nil {
		t.Fatalf("RemoveRowFilter() error = %v", err)
	}
	if len(s.RowFilters) != 0 {
		t.Errorf("len(RowFilters) = %d, want 0", len(s.RowFilters))
	}
	if _, err := RemoveRowFilter(s, id); !errors.Is(err, types.ErrFilterNotFound) {
		t.Errorf("RemoveRowFilter(missing) error = %v, want ErrFilterNotFound", err)
	}
}

func TestRemoveStage_LastStageRefused(t *testing.T) {
	stages := []types.Stage{NewStage(nil)}

	got, repairs, err := RemoveStage(stages, stages[0].ID)
	if !errors.Is(err, types.ErrLastStage) {
		t.Fatalf("RemoveStage() error = %v, want ErrLastStage", err)
	}
	if len(got) != 1 || repairs != nil {
		t.Errorf("RemoveStage() = %d stages, %v repairs, want unchanged", len(got), repairs)
	}
}

func TestRemoveStage_RemapsSurvivingReferences(t *testing.T) {
	stages := threeStages()

	got, repairs, err := RemoveStage(stages, stages[0].ID)
	if err != nil {
		t.Fatalf("RemoveStage() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for i, s := range got {
		if s.StageNumber != i+1 {
			t.Errorf("stages[%d].StageNumber = %d, want %d", i, s.StageNumber, i+1)
		}
	}

	// Old stage 2 depended on the removed stage 1: detached.
	if got[0].DependsOnStage != nil || got[0].TimeRelation != types.RelationNone {
		t.Errorf("stages[0] dependency = %v/%q, want detached", got[0].DependsOnStage, got[0].TimeRelation)
	}
	// Old stage 3 referenced old stage 2, now stage 1: remapped.
	ref := got[1].Conditions[0].ReferenceStage
	if ref == nil || ref.StageNumber != 1 {
		t.Errorf("stages[1] reference = %v, want stage 1", ref)
	}

	if len(repairs) != 1 || repairs[0].Kind != RepairDependencyDetached || repairs[0].Target != 1 {
		t.Errorf("repairs = %+v, want one dependency detach of stage 1", repairs)
	}
}

func TestRemoveStage_DetachesDanglingReference(t *testing.T) {
	stages := threeStages()

	got, repairs, err := RemoveStage(stages, stages[1].ID)
	if err != nil {
		t.Fatalf("RemoveStage() error = %v", err)
	}

	c := got[1].Conditions[0]
	if c.ReferenceStage != nil {
		t.Errorf("ReferenceStage = %v, want nil", c.ReferenceStage)
	}
	if c.ThresholdType != types.ThresholdLiteral {
		t.Errorf("ThresholdType = %q, want literal", c.ThresholdType)
	}
	if !c.Threshold.IsEmpty() {
		t.Errorf("Threshold = %v, want empty", c.Threshold)
	}

	if len(repairs) != 1 {
		t.Fatalf("len(repairs) = %d, want 1", len(repairs))
	}
	want := Repair{Kind: RepairReferenceDetached, StageNumber: 2, ConditionID: c.ID, Target: 2}
	if repairs[0] != want {
		t.Errorf("repair = %+v, want %+v", repairs[0], want)
	}
}

func TestRemoveStage_DetachesPreexistingForwardReference(t *testing.T) {
	stages := threeStages()
	stages = append(stages, NewStage(stages))
	stages = append(stages, NewStage(stages))
	// Stage 3 references stage 5, which was never a legal target.
	stages[2].Conditions[0].ReferenceStage.StageNumber = 5

	got, repairs, err := RemoveStage(stages, stages[1].ID)
	if err != nil {
		t.Fatalf("RemoveStage() error = %v", err)
	}
	if got[1].Conditions[0].ReferenceStage != nil {
		t.Errorf("ReferenceStage = %v, want detached", got[1].Conditions[0].ReferenceStage)
	}
	if len(repairs) != 1 || repairs[0].Target != 5 {
		t.Errorf("repairs = %+v, want one detach of stage 5", repairs)
	}
}

func TestRenumber_OrdersByStageNumber(t *testing.T) {
	a := NewStage(nil)
	a.StageNumber = 7
	b := NewStage(nil)
	b.StageNumber = 3

	got, _ := Renumber([]types.Stage{a, b})
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("Renumber() order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, b.ID, a.ID)
	}
	if got[0].StageNumber != 1 || got[1].StageNumber != 2 {
		t.Errorf("Renumber() numbers = %d,%d, want 1,2", got[0].StageNumber, got[1].StageNumber)
	}
}
