// internal/rules/validate.go
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/stagekeeper/internal/types"
)

/*
 * Structural validation.
 *
 * Validate walks a rule and reports every problem it finds instead of
 * stopping at the first. Each ValidationError carries a path into the
 * document (stages[1].conditions[0].referenceStage), a stable code, and
 * unwraps to a sentinel in internal/types so callers can use errors.Is.
 *
 * Checks fall into four groups:
 *   1. Shape: stage count, dense numbering, non-empty stages, limits
 *   2. Cross-stage references: dependsOnStage and referenceStage must name an
 *      existing, strictly earlier stage (dangling vs forward distinguished)
 *   3. Field compatibility against the catalog: known fields, operator vs
 *      field kind, threshold type vs field kind, list and transaction type use
 *   4. Update-rule consistency for rules built outside the update operations
 *
 * The list registry lookup is the only I/O; a registry failure aborts
 * validation with an error rather than a ValidationError.
 */

// Code classifies a validation problem.
type Code string

const (
	CodeEmptyRule                 Code = "empty_rule"
	CodeStageNumbering            Code = "stage_numbering"
	CodeEmptyStage                Code = "empty_stage"
	CodeTooManyStages             Code = "too_many_stages"
	CodeTooManyConditions         Code = "too_many_conditions"
	CodeTooManyFilters            Code = "too_many_filters"
	CodeTooManyCorrelationKeys    Code = "too_many_correlation_keys"
	CodeInvalidEnum               Code = "invalid_enum"
	CodeMissingOperator           Code = "missing_operator"
	CodeMissingTargetField        Code = "missing_target_field"
	CodeMissingField              Code = "missing_field"
	CodeUnknownField              Code = "unknown_field"
	CodeOperatorFieldMismatch     Code = "operator_field_mismatch"
	CodeAggregateFieldMismatch    Code = "aggregate_field_mismatch"
	CodeThresholdTypeMismatch     Code = "threshold_type_mismatch"
	CodeInvalidThreshold          Code = "invalid_threshold"
	CodeMissingThreshold          Code = "missing_threshold"
	CodeMissingReference          Code = "missing_reference"
	CodeInconsistentReference     Code = "inconsistent_reference"
	CodeDanglingReference         Code = "dangling_reference"
	CodeForwardReference          Code = "forward_reference"
	CodeTimeWindowWithoutAggr     Code = "time_window_without_aggregate"
	CodeInvalidTimeWindow         Code = "invalid_time_window"
	CodeMissingList               Code = "missing_list"
	CodeUnknownList               Code = "unknown_list"
	CodeListNotAllowed            Code = "list_not_allowed"
	CodeMissingValue              Code = "missing_value"
	CodeInvalidValue              Code = "invalid_value"
	CodeTransactionTypeNotAllowed Code = "transaction_type_not_allowed"
	CodeUnknownTransactionType    Code = "unknown_transaction_type"
	CodeRelationWithoutDependency Code = "time_relation_without_dependency"
	CodeDuplicateCorrelationKey   Code = "duplicate_correlation_key"
	CodeInvalidGroupBy            Code = "invalid_group_by"
	CodeInvalidOutputName         Code = "invalid_output_name"
)

var codeSentinels = map[Code]error{
	CodeEmptyRule:                 types.ErrLastStage,
	CodeStageNumbering:            types.ErrInconsistentRule,
	CodeEmptyStage:                types.ErrLastCondition,
	CodeTooManyStages:             types.ErrLimitExceeded,
	CodeTooManyConditions:         types.ErrLimitExceeded,
	CodeTooManyFilters:            types.ErrLimitExceeded,
	CodeTooManyCorrelationKeys:    types.ErrLimitExceeded,
	CodeInvalidEnum:               types.ErrInvalidEnum,
	CodeMissingOperator:           types.ErrMissingValue,
	CodeMissingTargetField:        types.ErrMissingValue,
	CodeMissingField:              types.ErrMissingValue,
	CodeUnknownField:              types.ErrUnknownField,
	CodeOperatorFieldMismatch:     types.ErrIncompatibleOperator,
	CodeAggregateFieldMismatch:    types.ErrIncompatibleOperator,
	CodeThresholdTypeMismatch:     types.ErrIncompatibleOperator,
	CodeInvalidThreshold:          types.ErrInvalidValue,
	CodeMissingThreshold:          types.ErrMissingValue,
	CodeMissingReference:          types.ErrMissingReference,
	CodeInconsistentReference:     types.ErrInconsistentRule,
	CodeDanglingReference:         types.ErrDanglingReference,
	CodeForwardReference:          types.ErrForwardReference,
	CodeTimeWindowWithoutAggr:     types.ErrInconsistentRule,
	CodeInvalidTimeWindow:         types.ErrInvalidValue,
	CodeMissingList:               types.ErrMissingValue,
	CodeUnknownList:               types.ErrUnknownList,
	CodeListNotAllowed:            types.ErrInconsistentRule,
	CodeMissingValue:              types.ErrMissingValue,
	CodeInvalidValue:              types.ErrInvalidValue,
	CodeTransactionTypeNotAllowed: types.ErrInconsistentRule,
	CodeUnknownTransactionType:    types.ErrInvalidEnum,
	CodeRelationWithoutDependency: types.ErrInconsistentRule,
	CodeDuplicateCorrelationKey:   types.ErrInconsistentRule,
	CodeInvalidGroupBy:            types.ErrInvalidValue,
	CodeInvalidOutputName:         types.ErrInvalidValue,
}

// ValidationError is one structural problem in a rule.
type ValidationError struct {
	Path    string `json:"path"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Unwrap returns the sentinel error for the code.
func (e ValidationError) Unwrap() error {
	return codeSentinels[e.Code]
}

// ValidationErrors is the full list of problems found in a rule.
type ValidationErrors []ValidationError

// Error implements error.
func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(es), strings.Join(msgs, "; "))
}

// Is matches types.ErrInvalidRule.
func (es ValidationErrors) Is(target error) bool {
	return target == types.ErrInvalidRule
}

// Unwrap exposes each problem to errors.Is / errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// HasCode reports whether any problem carries code.
func (es ValidationErrors) HasCode(code Code) bool {
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}

// validator accumulates problems for one Validate call.
type validator struct {
	ctx    context.Context
	cat    *Catalog
	rule   types.Rule
	errs   ValidationErrors
	ioErr  error
	nStage int
}

func (v *validator) add(path string, code Code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Validate reports every structural problem in r against cat.
// Returns nil ValidationErrors for a valid rule. The error is non-nil only
// when the list registry fails.
func Validate(ctx context.Context, r types.Rule, cat *Catalog) (ValidationErrors, error) {
	if cat == nil {
		cat = DefaultCatalog()
	}
	v := &validator{ctx: ctx, cat: cat, rule: r, nStage: len(r.Stages)}
	v.validateRule()
	if v.ioErr != nil {
		return nil, v.ioErr
	}
	if len(v.errs) == 0 {
		return nil, nil
	}
	return v.errs, nil
}

func (v *validator) validateRule() {
	if !isMember(v.rule.LogicType, types.LogicTypes) {
		v.add("logicType", CodeInvalidEnum, "logic type %q is not one of AND, OR", v.rule.LogicType)
	}
	if len(v.rule.Stages) == 0 {
		v.add("stages", CodeEmptyRule, "at least one stage is required")
		return
	}
	if len(v.rule.Stages) > types.MaxStages {
		v.add("stages", CodeTooManyStages, "%d stages exceeds maximum of %d", len(v.rule.Stages), types.MaxStages)
	}
	for i, s := range v.rule.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		if s.StageNumber != i+1 {
			v.add(path+".stageNumber", CodeStageNumbering, "stage number %d at position %d, want %d", s.StageNumber, i, i+1)
		}
		v.validateStage(path, s)
		if v.ioErr != nil {
			return
		}
	}
}

func (v *validator) validateStage(path string, s types.Stage) {
	if len(s.Conditions) == 0 {
		v.add(path+".conditions", CodeEmptyStage, "at least one condition is required")
	}
	if len(s.Conditions) > types.MaxConditionsPerStage {
		v.add(path+".conditions", CodeTooManyConditions, "%d conditions exceeds maximum of %d", len(s.Conditions), types.MaxConditionsPerStage)
	}

	if s.DependsOnStage != nil {
		// A null relation on a dependent stage means within.
		v.checkStageRef(path+".dependsOnStage", *s.DependsOnStage, s.StageNumber)
	} else {
		if s.TimeRelation != types.RelationNone {
			v.add(path+".timeRelation", CodeRelationWithoutDependency, "time relation set without a stage dependency")
		}
		if s.TimeWindowDays != nil {
			v.add(path+".timeWindowDays", CodeRelationWithoutDependency, "time window set without a stage dependency")
		}
	}
	if s.TimeRelation != types.RelationNone && !isMember(s.TimeRelation, types.TimeRelations) {
		v.add(path+".timeRelation", CodeInvalidEnum, "time relation %q is not one of after, before, within", s.TimeRelation)
	}
	v.checkDays(path+".timeWindowDays", s.TimeWindowDays)
	v.checkDays(path+".stageTimeWindowDays", s.StageTimeWindowDays)

	if s.OutputMode != types.OutputNone && !isMember(s.OutputMode, types.OutputModes) {
		v.add(path+".outputMode", CodeInvalidEnum, "output mode %q is not one of rows, aggregates, both", s.OutputMode)
	}
	if s.OutputName != nil && (strings.TrimSpace(*s.OutputName) == "" || len(*s.OutputName) > types.MaxOutputNameLength) {
		v.add(path+".outputName", CodeInvalidOutputName, "output name must be 1..%d characters", types.MaxOutputNameLength)
	}

	v.validateGroupBy(path+".groupBy", s.GroupBy)
	v.validateCorrelationKeys(path+".correlationKeys", s.CorrelationKeys)

	v.validateFilters(path+".rowFilters", s.RowFilters)
	for j, c := range s.Conditions {
		v.validateCondition(fmt.Sprintf("%s.conditions[%d]", path, j), s.StageNumber, c)
		if v.ioErr != nil {
			return
		}
	}
}

func (v *validator) validateGroupBy(path string, g types.GroupBy) {
	if g.IsNull() {
		return
	}
	fields := g.Fields()
	if len(fields) == 0 {
		v.add(path, CodeInvalidGroupBy, "group by list is empty")
		return
	}
	if len(fields) > types.MaxGroupByFields {
		v.add(path, CodeInvalidGroupBy, "%d grouping fields exceeds maximum of %d", len(fields), types.MaxGroupByFields)
	}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		fp := path
		if g.IsList() {
			fp = fmt.Sprintf("%s[%d]", path, i)
		}
		switch {
		case strings.TrimSpace(f) == "":
			v.add(fp, CodeInvalidGroupBy, "grouping field is blank")
		case seen[f]:
			v.add(fp, CodeInvalidGroupBy, "grouping field %q repeated", f)
		default:
			if _, ok := v.cat.Kind(f); !ok {
				v.add(fp, CodeUnknownField, "unknown field %q", f)
			}
		}
		seen[f] = true
	}
}

func (v *validator) validateCorrelationKeys(path string, keys []string) {
	if len(keys) > types.MaxCorrelationKeys {
		v.add(path, CodeTooManyCorrelationKeys, "%d correlation keys exceeds maximum of %d", len(keys), types.MaxCorrelationKeys)
	}
	seen := make(map[string]bool, len(keys))
	for i, k := range keys {
		kp := fmt.Sprintf("%s[%d]", path, i)
		if seen[k] {
			v.add(kp, CodeDuplicateCorrelationKey, "correlation key %q repeated", k)
			continue
		}
		seen[k] = true
		if _, ok := v.cat.Kind(k); !ok {
			v.add(kp, CodeUnknownField, "unknown field %q", k)
		}
	}
}

// checkStageRef reports references that do not name an existing, earlier stage.
func (v *validator) checkStageRef(path string, target, owner int) {
	switch {
	case target >= owner:
		v.add(path, CodeForwardReference, "stage %d cannot reference stage %d (must be earlier)", owner, target)
	case target < 1 || target > v.nStage:
		v.add(path, CodeDanglingReference, "stage %d does not exist", target)
	}
}

func (v *validator) checkDays(path string, days *int) {
	if days == nil {
		return
	}
	if *days < 1 || *days > types.MaxTimeWindowDays {
		v.add(path, CodeInvalidTimeWindow, "window of %d days outside 1..%d", *days, types.MaxTimeWindowDays)
	}
}

// resultKind returns the kind of the value a condition compares.
// Counting aggregates always produce numbers; mode keeps the field kind.
func resultKind(agg types.AggregateFunction, field FieldKind) FieldKind {
	switch agg {
	case types.AggCount, types.AggCountDistinct, types.AggCountUnique,
		types.AggSum, types.AggAvg, types.AggMax, types.AggMin:
		return FieldNumeric
	case types.AggDistinctValues:
		return FieldCategory
	default:
		return field
	}
}

func (v *validator) validateCondition(path string, stageNumber int, c types.Condition) {
	if !isMember(c.AggregateFunction, types.AggregateFunctions) {
		v.add(path+".aggregateFunction", CodeInvalidEnum, "aggregate function %q is not supported", c.AggregateFunction)
	}
	if !isMember(c.ThresholdType, types.ThresholdTypes) {
		v.add(path+".thresholdType", CodeInvalidEnum, "threshold type %q is not supported", c.ThresholdType)
	}
	if !isMember(c.Operator, types.ConditionOperators) {
		v.add(path+".operator", CodeInvalidEnum, "operator %q is not supported", c.Operator)
	} else if c.Operator == types.CondUnset {
		v.add(path+".operator", CodeMissingOperator, "an operator is required")
	}

	if c.TimeWindow != nil {
		if c.AggregateFunction == types.AggNone {
			v.add(path+".timeWindow", CodeTimeWindowWithoutAggr, "time window requires an aggregate function")
		}
		v.checkDays(path+".timeWindow", c.TimeWindow)
	}

	kind, known := FieldKind(""), false
	switch {
	case c.TargetField == nil || strings.TrimSpace(*c.TargetField) == "":
		v.add(path+".targetField", CodeMissingTargetField, "a target field is required")
	default:
		kind, known = v.cat.Kind(*c.TargetField)
		if !known {
			v.add(path+".targetField", CodeUnknownField, "unknown field %q", *c.TargetField)
		}
	}

	if known {
		v.validateConditionKind(path, c, kind)
	}
	v.validateConditionThreshold(path, stageNumber, c, kind, known)

	if c.SelectedList != nil {
		listAllowed := (known && kind == FieldList) || c.Operator.IsMembership()
		if !listAllowed {
			v.add(path+".selectedList", CodeListNotAllowed, "a list applies only to list fields or membership operators")
		}
		v.checkList(path+".selectedList", *c.SelectedList)
	}

	if c.TransactionType != nil {
		if c.TargetField == nil || *c.TargetField != "transaction_type" {
			v.add(path+".transactionType", CodeTransactionTypeNotAllowed, "transaction type applies only to the transaction_type field")
		} else if !v.cat.HasTransactionType(*c.TransactionType) {
			v.add(path+".transactionType", CodeUnknownTransactionType, "unknown transaction type %q", *c.TransactionType)
		}
	}

	v.validateFilters(path+".filters", c.Filters)
}

func (v *validator) validateConditionKind(path string, c types.Condition, kind FieldKind) {
	switch c.AggregateFunction {
	case types.AggSum, types.AggAvg, types.AggMax, types.AggMin:
		if kind != FieldNumeric {
			v.add(path+".aggregateFunction", CodeAggregateFieldMismatch, "%s requires a numeric field, %q is %s", c.AggregateFunction, *c.TargetField, kind)
		}
	}

	result := resultKind(c.AggregateFunction, kind)
	switch {
	case c.Operator.IsOrdering() && result != FieldNumeric:
		v.add(path+".operator", CodeOperatorFieldMismatch, "operator %q requires a numeric value, %q is %s", c.Operator, *c.TargetField, kind)
	case c.Operator.IsTextual() && result == FieldNumeric:
		v.add(path+".operator", CodeOperatorFieldMismatch, "operator %q requires a text value", c.Operator)
	}

	if kind != FieldNumeric && c.ThresholdType != types.ThresholdLiteral {
		v.add(path+".thresholdType", CodeThresholdTypeMismatch, "%s thresholds require a numeric field, %q is %s", c.ThresholdType, *c.TargetField, kind)
	}
	if kind == FieldList && c.SelectedList == nil {
		v.add(path+".selectedList", CodeMissingList, "list field %q requires a selected list", *c.TargetField)
	}
}

func (v *validator) validateConditionThreshold(path string, stageNumber int, c types.Condition, kind FieldKind, known bool) {
	if c.ThresholdType == types.ThresholdReference {
		if c.ReferenceStage == nil {
			v.add(path+".referenceStage", CodeMissingReference, "a reference threshold requires a reference stage")
		} else {
			v.checkStageRef(path+".referenceStage.stageNumber", c.ReferenceStage.StageNumber, stageNumber)
			if !isMember(c.ReferenceStage.Metric, types.Metrics) {
				v.add(path+".referenceStage.metric", CodeInvalidEnum, "metric %q is not one of sum, avg, count, max, min", c.ReferenceStage.Metric)
			}
		}
		if !c.Threshold.IsEmpty() {
			v.add(path+".threshold", CodeInvalidThreshold, "a reference threshold takes no literal value")
		}
		return
	}

	if c.ReferenceStage != nil {
		v.add(path+".referenceStage", CodeInconsistentReference, "reference stage set on a %s threshold", c.ThresholdType)
	}

	usesList := (known && kind == FieldList) || c.Operator.IsMembership()
	if usesList {
		if c.Operator.IsMembership() && c.SelectedList == nil && kind != FieldList {
			v.add(path+".selectedList", CodeMissingList, "operator %q requires a selected list", c.Operator)
		}
		return
	}
	if c.Threshold.IsEmpty() {
		v.add(path+".threshold", CodeMissingThreshold, "a threshold is required")
		return
	}
	if !known {
		return
	}
	n, isNum := c.Threshold.Number()
	if resultKind(c.AggregateFunction, kind) == FieldNumeric && !isNum {
		v.add(path+".threshold", CodeInvalidThreshold, "threshold %q is not a number", c.Threshold.Text())
		return
	}
	if c.ThresholdType == types.ThresholdPercentage && isNum && n < 0 {
		v.add(path+".threshold", CodeInvalidThreshold, "percentage %v is negative", n)
	}
}

func (v *validator) validateFilters(path string, filters []types.Filter) {
	if len(filters) > types.MaxFiltersPerCollection {
		v.add(path, CodeTooManyFilters, "%d filters exceeds maximum of %d", len(filters), types.MaxFiltersPerCollection)
	}
	for k, f := range filters {
		v.validateFilter(fmt.Sprintf("%s[%d]", path, k), f)
		if v.ioErr != nil {
			return
		}
	}
}

func (v *validator) validateFilter(path string, f types.Filter) {
	// Filter fields are free text; kind checks apply only to catalog fields.
	if strings.TrimSpace(f.Field) == "" {
		v.add(path+".field", CodeMissingField, "a filter field is required")
	}
	kind, known := v.cat.Kind(f.Field)

	if !isMember(f.Operator, types.FilterOperators) {
		v.add(path+".operator", CodeInvalidEnum, "filter operator %q is not supported", f.Operator)
		return
	}

	if f.Operator.IsListBased() {
		if f.ListID == nil || *f.ListID == "" {
			v.add(path+".listId", CodeMissingList, "operator %q requires a list", f.Operator)
		} else {
			v.checkList(path+".listId", *f.ListID)
		}
		return
	}

	if f.ListID != nil {
		v.add(path+".listId", CodeListNotAllowed, "operator %q takes a value, not a list", f.Operator)
	}
	if f.Value.IsEmpty() {
		v.add(path+".value", CodeMissingValue, "a filter value is required")
		return
	}
	if !known {
		return
	}
	switch {
	case f.Operator.IsOrdering() && kind != FieldNumeric:
		v.add(path+".operator", CodeOperatorFieldMismatch, "operator %q requires a numeric field, %q is %s", f.Operator, f.Field, kind)
	case f.Operator.IsOrdering():
		for _, s := range f.Value.Scalars() {
			if !s.IsNumber {
				v.add(path+".value", CodeInvalidValue, "value %q is not a number", s.Text)
				break
			}
		}
	case f.Operator == types.FilterContains && kind == FieldNumeric:
		v.add(path+".operator", CodeOperatorFieldMismatch, "operator %q requires a text field", f.Operator)
	}
}

func (v *validator) checkList(path, id string) {
	if id == "" {
		v.add(path, CodeMissingList, "list id is empty")
		return
	}
	_, ok, err := v.cat.LookupList(v.ctx, id)
	if err != nil {
		v.ioErr = fmt.Errorf("list lookup %q: %w", id, err)
		return
	}
	if !ok {
		v.add(path, CodeUnknownList, "unknown list %q", id)
	}
}

func isMember[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
