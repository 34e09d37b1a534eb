// internal/types/rules.go
package types

/*
 * Domain types for multi-stage rule specifications.
 *
 * Provides Rule, Stage, Condition, Filter and ReferenceStage: the editable
 * model an analyst builds. Identifiers (Stage.ID, Condition.ID, Filter.ID)
 * exist only for addressing edits; internal/rules strips them when producing
 * the canonical document.
 *
 * Key types:
 *   - Rule: logic operator plus ordered, densely numbered stages
 *   - Stage: conditions with grouping, correlation, dependency and row filters
 *   - Condition: aggregate + operator + threshold, with condition-level filters
 *   - Filter: atomic predicate (field, operator, value or list reference)
 *
 * Nullable scalars are pointers; nullable enumerations use their empty value.
 * JSON tags define the editable draft format (canonical names plus "id").
 */

// Filter is an atomic predicate used as a stage row filter or a condition filter.
type Filter struct {
	ID       FilterID       `json:"id,omitempty"`
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    FilterValue    `json:"value"`
	ListID   *string        `json:"listId"`
	Negate   bool           `json:"negate,omitempty"`
}

// ReferenceStage points a condition's threshold at a metric of an earlier stage.
type ReferenceStage struct {
	StageNumber int    `json:"stageNumber"`
	Metric      Metric `json:"metric"`
}

// Condition is one criterion within a stage.
type Condition struct {
	ID                ConditionID       `json:"id,omitempty"`
	AggregateFunction AggregateFunction `json:"aggregateFunction"`
	TargetField       *string           `json:"targetField"`
	TimeWindow        *int              `json:"timeWindow"`
	Operator          ConditionOperator `json:"operator"`
	Threshold         Threshold         `json:"threshold"`
	ThresholdType     ThresholdType     `json:"thresholdType"`
	SelectedList      *string           `json:"selectedList"`
	TransactionType   *string           `json:"transactionType"`
	ReferenceStage    *ReferenceStage   `json:"referenceStage"`
	Filters           []Filter          `json:"filters"`
}

// Stage is an ordered unit of evaluation within a rule.
type Stage struct {
	ID                  StageID           `json:"id,omitempty"`
	StageNumber         int               `json:"stageNumber"`
	DependsOnStage      *int              `json:"dependsOnStage"`
	TimeRelation        TimeRelation      `json:"timeRelation"`
	TimeWindowDays      *int              `json:"timeWindowDays"`
	GroupBy             GroupBy           `json:"groupBy"`
	OutputName          *string           `json:"outputName"`
	OutputMode          OutputMode        `json:"outputMode"`
	CorrelationKeys     []string          `json:"correlationKeys"`
	RowFilters          []Filter          `json:"rowFilters"`
	StageTimeWindowDays *int              `json:"stageTimeWindowDays"`
	Conditions          []Condition       `json:"conditions"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Rule is a complete multi-stage rule specification.
type Rule struct {
	LogicType LogicType `json:"logicType"`
	Stages    []Stage   `json:"stages"`
}
