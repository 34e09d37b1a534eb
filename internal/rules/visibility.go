package rules

import (
	"strings"

	"github.com/solatis/stagekeeper/internal/types"
)

// FieldTag names an editable field whose presence depends on other fields.
type FieldTag uint

const (
	TagTimeWindow FieldTag = iota
	TagListSelector
	TagTransactionType
	TagThresholdTypeSelector
	TagThreshold
	TagReferenceStage
	TagReferenceMetric
	TagTimeRelation
	TagTimeWindowDays
	TagFilterList
	TagFilterValue
)

var fieldTagNames = [...]string{
	TagTimeWindow:            "timeWindow",
	TagListSelector:          "selectedList",
	TagTransactionType:       "transactionType",
	TagThresholdTypeSelector: "thresholdType",
	TagThreshold:             "threshold",
	TagReferenceStage:        "referenceStage",
	TagReferenceMetric:       "referenceMetric",
	TagTimeRelation:          "timeRelation",
	TagTimeWindowDays:        "timeWindowDays",
	TagFilterList:            "listId",
	TagFilterValue:           "value",
}

// String returns the model field name of the tag.
func (t FieldTag) String() string {
	if int(t) < len(fieldTagNames) {
		return fieldTagNames[t]
	}
	return "unknown"
}

// FieldSet is a set of FieldTags.
type FieldSet uint32

// With returns s with t added.
func (s FieldSet) With(t FieldTag) FieldSet {
	return s | 1<<t
}

// Has reports whether t is in s.
func (s FieldSet) Has(t FieldTag) bool {
	return s&(1<<t) != 0
}

// Tags returns the members of s in tag order.
func (s FieldSet) Tags() []FieldTag {
	var out []FieldTag
	for t := FieldTag(0); int(t) < len(fieldTagNames); t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// String renders s as a comma-separated list of field names.
func (s FieldSet) String() string {
	names := make([]string, 0, len(fieldTagNames))
	for _, t := range s.Tags() {
		names = append(names, t.String())
	}
	return strings.Join(names, ",")
}

// VisibleConditionFields derives which dependent fields of cond are meaningful.
// Computed on every call; never stored.
func VisibleConditionFields(cond types.Condition, cat *Catalog) FieldSet {
	var s FieldSet
	kind, known := cat.KindOf(cond.TargetField)
	isList := known && kind == FieldList

	if cond.AggregateFunction != types.AggNone {
		s = s.With(TagTimeWindow)
	}
	if isList {
		s = s.With(TagListSelector)
	}
	if cond.TargetField != nil && *cond.TargetField == "transaction_type" {
		s = s.With(TagTransactionType)
	}
	if known && kind == FieldNumeric {
		s = s.With(TagThresholdTypeSelector)
	}
	if !isList && cond.ThresholdType != types.ThresholdReference {
		s = s.With(TagThreshold)
	}
	if cond.ThresholdType == types.ThresholdReference {
		s = s.With(TagReferenceStage).With(TagReferenceMetric)
	}
	return s
}

// VisibleStageFields derives which dependent fields of stage are meaningful.
func VisibleStageFields(stage types.Stage) FieldSet {
	var s FieldSet
	if stage.DependsOnStage != nil {
		s = s.With(TagTimeRelation).With(TagTimeWindowDays)
	}
	return s
}

// VisibleFilterFields derives whether a filter takes a list or a value.
func VisibleFilterFields(f types.Filter) FieldSet {
	var s FieldSet
	if f.Operator.IsListBased() {
		return s.With(TagFilterList)
	}
	return s.With(TagFilterValue)
}
