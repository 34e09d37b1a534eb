package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/stagekeeper/internal/types"
)

// validRule builds a two-stage rule that passes validation against the
// default catalog:
//
//	stage 1: sum(amount) over 30 days > 10000, grouped by customer_id
//	stage 2: depends on stage 1 within 7 days; avg(amount) > stage 1 avg
func validRule() types.Rule {
	r := NewRule()
	s1 := r.Stages[0].ID
	c1 := r.Stages[0].Conditions[0].ID

	r, _ = PatchCondition(r, s1, c1, ConditionPatch{
		AggregateFunction: types.Some(types.AggSum),
		TargetField:       types.Some(types.StringPtr("amount")),
		TimeWindow:        types.Some(types.IntPtr(30)),
		Operator:          types.Some(types.CondGt),
	})
	r, _ = PatchCondition(r, s1, c1, ConditionPatch{Threshold: types.Some(types.NumberThreshold(10000))})
	r, _ = PatchStage(r, s1, StagePatch{GroupBy: types.Some(types.GroupByField("customer_id"))})

	r, s2 := AddStage(r)
	c2 := r.Stages[1].Conditions[0].ID
	r, _ = PatchStage(r, s2, StagePatch{
		DependsOnStage: types.Some(types.IntPtr(1)),
		TimeWindowDays: types.Some(types.IntPtr(7)),
	})
	r, _ = PatchCondition(r, s2, c2, ConditionPatch{
		AggregateFunction: types.Some(types.AggAvg),
		TargetField:       types.Some(types.StringPtr("amount")),
		Operator:          types.Some(types.CondGt),
		ThresholdType:     types.Some(types.ThresholdReference),
	})
	r, _ = EditCondition(r, s2, c2, func(c types.Condition) (types.Condition, error) {
		return SelectReferenceMetric(SelectReferenceStage(c, 1), types.MetricAvg), nil
	})
	r, _ = EditStage(r, s2, func(s types.Stage) (types.Stage, error) {
		return AddCorrelationKey(s, "customer_id"), nil
	})
	return r
}

func mustValidate(t *testing.T, r types.Rule) ValidationErrors {
	t.Helper()
	errs, err := Validate(context.Background(), r, DefaultCatalog())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return errs
}

func TestValidate_ValidRule(t *testing.T) {
	if errs := mustValidate(t, validRule()); errs != nil {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *types.Rule)
		wantCode Code
		wantPath string
		wantErr  error
	}{
		{
			name:     "empty rule",
			mutate:   func(r *types.Rule) { r.Stages = nil },
			wantCode: CodeEmptyRule,
			wantPath: "stages",
			wantErr:  types.ErrLastStage,
		},
		{
			name:     "gap in stage numbers",
			mutate:   func(r *types.Rule) { r.Stages[1].StageNumber = 3 },
			wantCode: CodeStageNumbering,
			wantPath: "stages[1].stageNumber",
			wantErr:  types.ErrInconsistentRule,
		},
		{
			name:     "stage without conditions",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions = nil },
			wantCode: CodeEmptyStage,
			wantPath: "stages[0].conditions",
		},
		{
			name:     "dependency on itself",
			mutate:   func(r *types.Rule) { r.Stages[1].DependsOnStage = types.IntPtr(2) },
			wantCode: CodeForwardReference,
			wantPath: "stages[1].dependsOnStage",
			wantErr:  types.ErrForwardReference,
		},
		{
			name:     "dependency on nonexistent stage",
			mutate:   func(r *types.Rule) { r.Stages[1].DependsOnStage = types.IntPtr(0) },
			wantCode: CodeDanglingReference,
			wantPath: "stages[1].dependsOnStage",
			wantErr:  types.ErrDanglingReference,
		},
		{
			name: "reference to later stage",
			mutate: func(r *types.Rule) {
				r.Stages[1].Conditions[0].ReferenceStage.StageNumber = 5
			},
			wantCode: CodeForwardReference,
			wantPath: "stages[1].conditions[0].referenceStage.stageNumber",
		},
		{
			name: "reference type without reference stage",
			mutate: func(r *types.Rule) {
				r.Stages[1].Conditions[0].ReferenceStage = nil
			},
			wantCode: CodeMissingReference,
			wantPath: "stages[1].conditions[0].referenceStage",
			wantErr:  types.ErrMissingReference,
		},
		{
			name: "reference stage on literal threshold",
			mutate: func(r *types.Rule) {
				r.Stages[0].Conditions[0].ReferenceStage = &types.ReferenceStage{StageNumber: 1, Metric: types.MetricSum}
			},
			wantCode: CodeInconsistentReference,
			wantPath: "stages[0].conditions[0].referenceStage",
		},
		{
			name:     "time relation without dependency",
			mutate:   func(r *types.Rule) { r.Stages[0].TimeRelation = types.RelationAfter },
			wantCode: CodeRelationWithoutDependency,
			wantPath: "stages[0].timeRelation",
		},
		{
			name:     "time window without aggregate",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].AggregateFunction = types.AggNone },
			wantCode: CodeTimeWindowWithoutAggr,
			wantPath: "stages[0].conditions[0].timeWindow",
		},
		{
			name:     "window too long",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].TimeWindow = types.IntPtr(types.MaxTimeWindowDays + 1) },
			wantCode: CodeInvalidTimeWindow,
			wantPath: "stages[0].conditions[0].timeWindow",
		},
		{
			name:     "unset operator",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].Operator = types.CondUnset },
			wantCode: CodeMissingOperator,
			wantPath: "stages[0].conditions[0].operator",
		},
		{
			name:     "unknown target field",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].TargetField = types.StringPtr("velocity") },
			wantCode: CodeUnknownField,
			wantPath: "stages[0].conditions[0].targetField",
			wantErr:  types.ErrUnknownField,
		},
		{
			name:     "missing threshold",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].Threshold = types.EmptyThreshold() },
			wantCode: CodeMissingThreshold,
			wantPath: "stages[0].conditions[0].threshold",
		},
		{
			name:     "text threshold on numeric field",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].Threshold = types.TextThreshold("lots") },
			wantCode: CodeInvalidThreshold,
			wantPath: "stages[0].conditions[0].threshold",
		},
		{
			name: "ordering operator on text field",
			mutate: func(r *types.Rule) {
				c := &r.Stages[0].Conditions[0]
				c.AggregateFunction = types.AggNone
				c.TimeWindow = nil
				c.TargetField = types.StringPtr("merchant")
				c.Threshold = types.TextThreshold("ACME")
			},
			wantCode: CodeOperatorFieldMismatch,
			wantPath: "stages[0].conditions[0].operator",
			wantErr:  types.ErrIncompatibleOperator,
		},
		{
			name: "sum over category field",
			mutate: func(r *types.Rule) {
				r.Stages[0].Conditions[0].TargetField = types.StringPtr("country")
			},
			wantCode: CodeAggregateFieldMismatch,
			wantPath: "stages[0].conditions[0].aggregateFunction",
		},
		{
			name: "percentage on category field",
			mutate: func(r *types.Rule) {
				c := &r.Stages[0].Conditions[0]
				c.AggregateFunction = types.AggNone
				c.TimeWindow = nil
				c.TargetField = types.StringPtr("country")
				c.Operator = types.CondEq
				c.Threshold = types.TextThreshold("GB")
				c.ThresholdType = types.ThresholdPercentage
			},
			wantCode: CodeThresholdTypeMismatch,
			wantPath: "stages[0].conditions[0].thresholdType",
		},
		{
			name: "list field without list",
			mutate: func(r *types.Rule) {
				c := &r.Stages[0].Conditions[0]
				c.AggregateFunction = types.AggNone
				c.TimeWindow = nil
				c.TargetField = types.StringPtr("pep_list")
				c.Operator = types.CondIn
				c.Threshold = types.EmptyThreshold()
			},
			wantCode: CodeMissingList,
			wantPath: "stages[0].conditions[0].selectedList",
		},
		{
			name: "unknown list",
			mutate: func(r *types.Rule) {
				c := &r.Stages[0].Conditions[0]
				c.AggregateFunction = types.AggNone
				c.TimeWindow = nil
				c.TargetField = types.StringPtr("pep_list")
				c.Operator = types.CondIn
				c.Threshold = types.EmptyThreshold()
				c.SelectedList = types.StringPtr("pep_z")
			},
			wantCode: CodeUnknownList,
			wantPath: "stages[0].conditions[0].selectedList",
			wantErr:  types.ErrUnknownList,
		},
		{
			name:     "list on numeric comparison",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].SelectedList = types.StringPtr("pep_a") },
			wantCode: CodeListNotAllowed,
			wantPath: "stages[0].conditions[0].selectedList",
		},
		{
			name:     "transaction type on other field",
			mutate:   func(r *types.Rule) { r.Stages[0].Conditions[0].TransactionType = types.StringPtr("deposit") },
			wantCode: CodeTransactionTypeNotAllowed,
			wantPath: "stages[0].conditions[0].transactionType",
		},
		{
			name: "unknown transaction type",
			mutate: func(r *types.Rule) {
				c := &r.Stages[0].Conditions[0]
				c.AggregateFunction = types.AggNone
				c.TimeWindow = nil
				c.TargetField = types.StringPtr("transaction_type")
				c.Operator = types.CondEq
				c.Threshold = types.TextThreshold("deposit")
				c.TransactionType = types.StringPtr("crypto")
			},
			wantCode: CodeUnknownTransactionType,
			wantPath: "stages[0].conditions[0].transactionType",
		},
		{
			name:     "duplicate correlation key",
			mutate:   func(r *types.Rule) { r.Stages[1].CorrelationKeys = []string{"customer_id", "customer_id"} },
			wantCode: CodeDuplicateCorrelationKey,
			wantPath: "stages[1].correlationKeys[1]",
		},
		{
			name:     "empty group by list",
			mutate:   func(r *types.Rule) { r.Stages[0].GroupBy = types.GroupByFields() },
			wantCode: CodeInvalidGroupBy,
			wantPath: "stages[0].groupBy",
		},
		{
			name: "list filter without list",
			mutate: func(r *types.Rule) {
				r.Stages[0].RowFilters = []types.Filter{{Field: "counterparty_name", Operator: types.FilterIn}}
			},
			wantCode: CodeMissingList,
			wantPath: "stages[0].rowFilters[0].listId",
		},
		{
			name: "value filter without value",
			mutate: func(r *types.Rule) {
				r.Stages[0].Conditions[0].Filters = []types.Filter{{Field: "channel", Operator: types.FilterEq}}
			},
			wantCode: CodeMissingValue,
			wantPath: "stages[0].conditions[0].filters[0].value",
		},
		{
			name: "ordering filter with text value",
			mutate: func(r *types.Rule) {
				r.Stages[0].RowFilters = []types.Filter{{
					Field: "amount", Operator: types.FilterGt, Value: types.ScalarValue(types.TextScalar("big")),
				}}
			},
			wantCode: CodeInvalidValue,
			wantPath: "stages[0].rowFilters[0].value",
		},
		{
			name:     "invalid logic type",
			mutate:   func(r *types.Rule) { r.LogicType = "XOR" },
			wantCode: CodeInvalidEnum,
			wantPath: "logicType",
			wantErr:  types.ErrInvalidEnum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			errs := mustValidate(t, r)

			var found *ValidationError
			for i := range errs {
				if errs[i].Code == tt.wantCode && errs[i].Path == tt.wantPath {
					found = &errs[i]
					break
				}
			}
			if found == nil {
				t.Fatalf("Validate() = %v, want %s at %s", errs, tt.wantCode, tt.wantPath)
			}
			if tt.wantErr != nil && !errors.Is(found, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", found, tt.wantErr)
			}
			if !errors.Is(errs, types.ErrInvalidRule) {
				t.Error("ValidationErrors does not match ErrInvalidRule")
			}
		})
	}
}

func TestValidate_FreeTextFilterField(t *testing.T) {
	r := validRule()
	r.Stages[0].RowFilters = []types.Filter{{
		Field: "device_fingerprint", Operator: types.FilterEq, Value: types.ScalarValue(types.TextScalar("abc")),
	}}

	if errs := mustValidate(t, r); errs != nil {
		t.Errorf("Validate() = %v, want filter fields outside the catalog accepted", errs)
	}
}

func TestValidate_DependencyWithNullRelation(t *testing.T) {
	r := validRule()
	r.Stages[1].TimeRelation = types.RelationNone

	if errs := mustValidate(t, r); errs != nil {
		t.Fatalf("Validate() = %v, want null relation accepted as within", errs)
	}

	doc, err := Canonicalize(context.Background(), r, DefaultCatalog())
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	if got := doc.Rule.Stages[1].TimeRelation; got != types.RelationNone {
		t.Errorf("canonical timeRelation = %q, want null", got)
	}
}

func TestValidate_ZeroThresholdIsValid(t *testing.T) {
	r := validRule()
	r.Stages[0].Conditions[0].Threshold = types.NumberThreshold(0)

	if errs := mustValidate(t, r); errs != nil {
		t.Errorf("Validate() = %v, want zero threshold accepted", errs)
	}
}

func TestValidate_RegistryFailure(t *testing.T) {
	r := validRule()
	r.Stages[0].RowFilters = []types.Filter{{Field: "counterparty_name", Operator: types.FilterIn, ListID: types.StringPtr("hawala")}}
	cat := NewCatalog(DefaultFields, DefaultTransactionTypes, failingLists{})

	errs, err := Validate(context.Background(), r, cat)
	if err == nil {
		t.Fatalf("Validate() error = nil, want registry failure (errs = %v)", errs)
	}
}
