package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Enumerated value sets of the rule model.
 *
 * Each enumeration is a distinct string type with typed constants. Parse*
 * functions and UnmarshalJSON reject anything outside the set with
 * ErrInvalidEnum, so a Rule decoded from a document can only carry members
 * of the enumerated sets. Nullable enumerations use the empty string as null
 * and marshal it as JSON null.
 */

// LogicType combines stages at the top level of a rule.
type LogicType string

const (
	LogicAnd LogicType = "AND"
	LogicOr  LogicType = "OR"
)

// LogicTypes lists every LogicType in display order.
var LogicTypes = []LogicType{LogicAnd, LogicOr}

// AggregateFunction computes a metric over a condition's target field.
type AggregateFunction string

const (
	AggNone           AggregateFunction = "none"
	AggSum            AggregateFunction = "sum"
	AggAvg            AggregateFunction = "avg"
	AggCount          AggregateFunction = "count"
	AggMax            AggregateFunction = "max"
	AggMin            AggregateFunction = "min"
	AggMode           AggregateFunction = "mode"
	AggCountDistinct  AggregateFunction = "countDistinct"
	AggCountUnique    AggregateFunction = "countUnique"
	AggDistinctValues AggregateFunction = "distinctValues"
)

// AggregateFunctions lists every AggregateFunction.
var AggregateFunctions = []AggregateFunction{
	AggNone, AggSum, AggAvg, AggCount, AggMax, AggMin,
	AggMode, AggCountDistinct, AggCountUnique, AggDistinctValues,
}

// FilterOperator is the predicate operator of a Filter.
type FilterOperator string

const (
	FilterEq       FilterOperator = "="
	FilterNeq      FilterOperator = "!="
	FilterGt       FilterOperator = ">"
	FilterLt       FilterOperator = "<"
	FilterGte      FilterOperator = ">="
	FilterLte      FilterOperator = "<="
	FilterIn       FilterOperator = "in"
	FilterNotIn    FilterOperator = "notIn"
	FilterContains FilterOperator = "contains"
)

// FilterOperators lists every FilterOperator.
var FilterOperators = []FilterOperator{
	FilterEq, FilterNeq, FilterGt, FilterLt, FilterGte, FilterLte,
	FilterIn, FilterNotIn, FilterContains,
}

// IsListBased reports whether the operator tests membership in an external list.
func (op FilterOperator) IsListBased() bool {
	return op == FilterIn || op == FilterNotIn
}

// IsOrdering reports whether the operator compares magnitudes.
func (op FilterOperator) IsOrdering() bool {
	switch op {
	case FilterGt, FilterLt, FilterGte, FilterLte:
		return true
	}
	return false
}

// ConditionOperator compares a condition's metric against its threshold.
// The empty operator is the unset state of a freshly created condition.
type ConditionOperator string

const (
	CondUnset       ConditionOperator = ""
	CondGt          ConditionOperator = ">"
	CondGte         ConditionOperator = ">="
	CondLt          ConditionOperator = "<"
	CondLte         ConditionOperator = "<="
	CondEq          ConditionOperator = "="
	CondNeq         ConditionOperator = "!="
	CondIn          ConditionOperator = "in"
	CondNotIn       ConditionOperator = "notIn"
	CondContains    ConditionOperator = "contains"
	CondNotContains ConditionOperator = "not_contains"
	CondPercentOf   ConditionOperator = "% of"
)

// ConditionOperators lists every ConditionOperator, including the unset one.
var ConditionOperators = []ConditionOperator{
	CondUnset, CondGt, CondGte, CondLt, CondLte, CondEq, CondNeq,
	CondIn, CondNotIn, CondContains, CondNotContains, CondPercentOf,
}

// IsOrdering reports whether the operator compares magnitudes.
func (op ConditionOperator) IsOrdering() bool {
	switch op {
	case CondGt, CondGte, CondLt, CondLte, CondPercentOf:
		return true
	}
	return false
}

// IsMembership reports whether the operator tests list membership.
func (op ConditionOperator) IsMembership() bool {
	return op == CondIn || op == CondNotIn
}

// IsTextual reports whether the operator matches substrings.
func (op ConditionOperator) IsTextual() bool {
	return op == CondContains || op == CondNotContains
}

// ThresholdType selects how a condition's threshold is interpreted.
type ThresholdType string

const (
	ThresholdLiteral    ThresholdType = "literal"
	ThresholdPercentage ThresholdType = "percentage"
	ThresholdReference  ThresholdType = "reference"
)

// ThresholdTypes lists every ThresholdType.
var ThresholdTypes = []ThresholdType{ThresholdLiteral, ThresholdPercentage, ThresholdReference}

// Metric is the metric of an earlier stage used as a reference threshold.
type Metric string

const (
	MetricSum   Metric = "sum"
	MetricAvg   Metric = "avg"
	MetricCount Metric = "count"
	MetricMax   Metric = "max"
	MetricMin   Metric = "min"
)

// Metrics lists every Metric.
var Metrics = []Metric{MetricSum, MetricAvg, MetricCount, MetricMax, MetricMin}

// TimeRelation qualifies a stage dependency. Empty means null.
type TimeRelation string

const (
	RelationNone   TimeRelation = ""
	RelationAfter  TimeRelation = "after"
	RelationBefore TimeRelation = "before"
	RelationWithin TimeRelation = "within"
)

// TimeRelations lists every non-null TimeRelation.
var TimeRelations = []TimeRelation{RelationAfter, RelationBefore, RelationWithin}

// OutputMode selects what a stage hands to downstream stages. Empty means null.
type OutputMode string

const (
	OutputNone       OutputMode = ""
	OutputRows       OutputMode = "rows"
	OutputAggregates OutputMode = "aggregates"
	OutputBoth       OutputMode = "both"
)

// OutputModes lists every non-null OutputMode.
var OutputModes = []OutputMode{OutputRows, OutputAggregates, OutputBoth}

// parseEnum returns s as T when it is a member of valid.
func parseEnum[T ~string](kind, s string, valid []T) (T, error) {
	for _, v := range valid {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s %q: %w", kind, s, ErrInvalidEnum)
}

// unmarshalEnum decodes a JSON string into T, allowing null when nullable.
func unmarshalEnum[T ~string](data []byte, kind string, valid []T, nullable bool) (T, error) {
	if string(data) == "null" {
		if nullable {
			return "", nil
		}
		return "", fmt.Errorf("%s null: %w", kind, ErrInvalidEnum)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%s: %w", kind, ErrInvalidEnum)
	}
	if nullable && s == "" {
		return "", nil
	}
	return parseEnum(kind, s, valid)
}

// marshalNullable encodes the empty value as null.
func marshalNullable(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

// ParseLogicType converts s to a LogicType.
func ParseLogicType(s string) (LogicType, error) {
	return parseEnum("logic type", s, LogicTypes)
}

// ParseAggregateFunction converts s to an AggregateFunction.
func ParseAggregateFunction(s string) (AggregateFunction, error) {
	return parseEnum("aggregate function", s, AggregateFunctions)
}

// ParseFilterOperator converts s to a FilterOperator.
func ParseFilterOperator(s string) (FilterOperator, error) {
	return parseEnum("filter operator", s, FilterOperators)
}

// ParseConditionOperator converts s to a ConditionOperator.
func ParseConditionOperator(s string) (ConditionOperator, error) {
	return parseEnum("condition operator", s, ConditionOperators)
}

// ParseThresholdType converts s to a ThresholdType.
func ParseThresholdType(s string) (ThresholdType, error) {
	return parseEnum("threshold type", s, ThresholdTypes)
}

// ParseMetric converts s to a Metric.
func ParseMetric(s string) (Metric, error) {
	return parseEnum("metric", s, Metrics)
}

// ParseTimeRelation converts s to a TimeRelation. Empty is accepted as null.
func ParseTimeRelation(s string) (TimeRelation, error) {
	if s == "" {
		return RelationNone, nil
	}
	return parseEnum("time relation", s, TimeRelations)
}

// ParseOutputMode converts s to an OutputMode. Empty is accepted as null.
func ParseOutputMode(s string) (OutputMode, error) {
	if s == "" {
		return OutputNone, nil
	}
	return parseEnum("output mode", s, OutputModes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LogicType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "logic type", LogicTypes, false)
	*l = v
	return err
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AggregateFunction) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "aggregate function", AggregateFunctions, false)
	*a = v
	return err
}

// UnmarshalJSON implements json.Unmarshaler.
func (op *FilterOperator) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "filter operator", FilterOperators, false)
	*op = v
	return err
}

// UnmarshalJSON implements json.Unmarshaler. Null decodes to the unset operator.
func (op *ConditionOperator) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "condition operator", ConditionOperators, true)
	*op = v
	return err
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ThresholdType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "threshold type", ThresholdTypes, false)
	*t = v
	return err
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "metric", Metrics, false)
	*m = v
	return err
}

// MarshalJSON implements json.Marshaler. RelationNone encodes as null.
func (r TimeRelation) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *TimeRelation) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "time relation", TimeRelations, true)
	*r = v
	return err
}

// MarshalJSON implements json.Marshaler. OutputNone encodes as null.
func (m OutputMode) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(m))
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *OutputMode) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, "output mode", OutputModes, true)
	*m = v
	return err
}
