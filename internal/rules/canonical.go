// internal/rules/canonical.go
package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/solatis/stagekeeper/internal/types"
)

/*
 * Canonical rule document.
 *
 * The canonical document is the id-free form of a Rule handed to the
 * downstream evaluator. Field order is fixed by the struct declarations
 * below, so encoding/json produces byte-identical output for the same
 * logical rule. Normalization applied on the way out:
 *
 *   - internal ids and stage metadata are dropped
 *   - correlationKeys and rowFilters are always arrays, never null
 *   - condition filters are null when empty
 *
 * The digest (hex SHA-256 of the canonical bytes) is the idempotency key for
 * submission and the ETag for sync.
 */

// CanonicalFilter is a Filter without its id.
type CanonicalFilter struct {
	Field    string               `json:"field"`
	Operator types.FilterOperator `json:"operator"`
	Value    types.FilterValue    `json:"value"`
	ListID   *string              `json:"listId"`
	Negate   bool                 `json:"negate,omitempty"`
}

// CanonicalCondition is a Condition without its id.
type CanonicalCondition struct {
	AggregateFunction types.AggregateFunction `json:"aggregateFunction"`
	TargetField       *string                 `json:"targetField"`
	TimeWindow        *int                    `json:"timeWindow"`
	Operator          types.ConditionOperator `json:"operator"`
	Threshold         types.Threshold         `json:"threshold"`
	ThresholdType     types.ThresholdType     `json:"thresholdType"`
	SelectedList      *string                 `json:"selectedList"`
	TransactionType   *string                 `json:"transactionType"`
	ReferenceStage    *types.ReferenceStage   `json:"referenceStage"`
	Filters           []CanonicalFilter       `json:"filters"`
}

// CanonicalStage is a Stage without its id or metadata.
type CanonicalStage struct {
	StageNumber         int                  `json:"stageNumber"`
	DependsOnStage      *int                 `json:"dependsOnStage"`
	TimeRelation        types.TimeRelation   `json:"timeRelation"`
	TimeWindowDays      *int                 `json:"timeWindowDays"`
	GroupBy             types.GroupBy        `json:"groupBy"`
	OutputName          *string              `json:"outputName"`
	OutputMode          types.OutputMode     `json:"outputMode"`
	CorrelationKeys     []string             `json:"correlationKeys"`
	RowFilters          []CanonicalFilter    `json:"rowFilters"`
	StageTimeWindowDays *int                 `json:"stageTimeWindowDays"`
	Conditions          []CanonicalCondition `json:"conditions"`
}

// CanonicalRule is the document submitted to the external evaluator.
type CanonicalRule struct {
	LogicType types.LogicType  `json:"logicType"`
	Stages    []CanonicalStage `json:"stages"`
}

// Document is a validated canonical rule with its encoding and digest.
type Document struct {
	Rule   CanonicalRule
	JSON   []byte
	Digest string
}

// ToCanonical strips ids and metadata from r. It does not validate.
func ToCanonical(r types.Rule) CanonicalRule {
	r = CloneRule(r)
	out := CanonicalRule{
		LogicType: r.LogicType,
		Stages:    make([]CanonicalStage, 0, len(r.Stages)),
	}
	for _, s := range r.Stages {
		cs := CanonicalStage{
			StageNumber:         s.StageNumber,
			DependsOnStage:      s.DependsOnStage,
			TimeRelation:        s.TimeRelation,
			TimeWindowDays:      s.TimeWindowDays,
			GroupBy:             s.GroupBy,
			OutputName:          s.OutputName,
			OutputMode:          s.OutputMode,
			CorrelationKeys:     s.CorrelationKeys,
			RowFilters:          canonicalFilters(s.RowFilters),
			StageTimeWindowDays: s.StageTimeWindowDays,
			Conditions:          make([]CanonicalCondition, 0, len(s.Conditions)),
		}
		if cs.CorrelationKeys == nil {
			cs.CorrelationKeys = []string{}
		}
		if cs.RowFilters == nil {
			cs.RowFilters = []CanonicalFilter{}
		}
		for _, c := range s.Conditions {
			cs.Conditions = append(cs.Conditions, CanonicalCondition{
				AggregateFunction: c.AggregateFunction,
				TargetField:       c.TargetField,
				TimeWindow:        c.TimeWindow,
				Operator:          c.Operator,
				Threshold:         c.Threshold,
				ThresholdType:     c.ThresholdType,
				SelectedList:      c.SelectedList,
				TransactionType:   c.TransactionType,
				ReferenceStage:    c.ReferenceStage,
				Filters:           canonicalFilters(c.Filters),
			})
		}
		out.Stages = append(out.Stages, cs)
	}
	return out
}

func canonicalFilters(fs []types.Filter) []CanonicalFilter {
	if len(fs) == 0 {
		return nil
	}
	out := make([]CanonicalFilter, len(fs))
	for i, f := range fs {
		out[i] = CanonicalFilter{
			Field:    f.Field,
			Operator: f.Operator,
			Value:    f.Value,
			ListID:   f.ListID,
			Negate:   f.Negate,
		}
	}
	return out
}

// MarshalCanonical encodes the canonical form of r.
func MarshalCanonical(r types.Rule) ([]byte, error) {
	data, err := json.Marshal(ToCanonical(r))
	if err != nil {
		return nil, fmt.Errorf("marshal canonical rule: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of canonical document bytes.
func Digest(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Canonicalize validates r against cat and returns its canonical document.
// Invalid rules are refused with ValidationErrors, which matches
// types.ErrInvalidRule.
func Canonicalize(ctx context.Context, r types.Rule, cat *Catalog) (Document, error) {
	errs, err := Validate(ctx, r, cat)
	if err != nil {
		return Document{}, err
	}
	if len(errs) > 0 {
		return Document{}, errs
	}
	doc := ToCanonical(r)
	data, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("marshal canonical rule: %w", err)
	}
	return Document{Rule: doc, JSON: data, Digest: Digest(data)}, nil
}

// FromCanonical rebuilds an editable Rule from a canonical document,
// assigning fresh ids.
func FromCanonical(doc CanonicalRule) types.Rule {
	r := types.Rule{LogicType: doc.LogicType, Stages: make([]types.Stage, 0, len(doc.Stages))}
	for _, cs := range doc.Stages {
		s := types.Stage{
			StageNumber:         cs.StageNumber,
			DependsOnStage:      cloneIntPtr(cs.DependsOnStage),
			TimeRelation:        cs.TimeRelation,
			TimeWindowDays:      cloneIntPtr(cs.TimeWindowDays),
			GroupBy:             cs.GroupBy,
			OutputName:          cloneStringPtr(cs.OutputName),
			OutputMode:          cs.OutputMode,
			CorrelationKeys:     append([]string{}, cs.CorrelationKeys...),
			RowFilters:          fromCanonicalFilters(cs.RowFilters),
			StageTimeWindowDays: cloneIntPtr(cs.StageTimeWindowDays),
		}
		if s.RowFilters == nil {
			s.RowFilters = []types.Filter{}
		}
		for _, cc := range cs.Conditions {
			c := types.Condition{
				AggregateFunction: cc.AggregateFunction,
				TargetField:       cloneStringPtr(cc.TargetField),
				TimeWindow:        cloneIntPtr(cc.TimeWindow),
				Operator:          cc.Operator,
				Threshold:         cc.Threshold,
				ThresholdType:     cc.ThresholdType,
				SelectedList:      cloneStringPtr(cc.SelectedList),
				TransactionType:   cloneStringPtr(cc.TransactionType),
				Filters:           fromCanonicalFilters(cc.Filters),
			}
			if cc.ReferenceStage != nil {
				ref := *cc.ReferenceStage
				c.ReferenceStage = &ref
			}
			s.Conditions = append(s.Conditions, c)
		}
		r.Stages = append(r.Stages, s)
	}
	return AssignIDs(r)
}

func fromCanonicalFilters(fs []CanonicalFilter) []types.Filter {
	if len(fs) == 0 {
		return nil
	}
	out := make([]types.Filter, len(fs))
	for i, f := range fs {
		out[i] = types.Filter{
			Field:    f.Field,
			Operator: f.Operator,
			Value:    cloneFilterValue(f.Value),
			ListID:   cloneStringPtr(f.ListID),
			Negate:   f.Negate,
		}
	}
	return out
}

// AssignIDs gives every stage, condition and filter without an id a fresh one.
// Existing ids are kept.
func AssignIDs(r types.Rule) types.Rule {
	next := CloneRule(r)
	for i := range next.Stages {
		s := &next.Stages[i]
		if s.ID == "" {
			s.ID = types.NewStageID()
		}
		assignFilterIDs(s.RowFilters)
		for j := range s.Conditions {
			c := &s.Conditions[j]
			if c.ID == "" {
				c.ID = types.NewConditionID()
			}
			assignFilterIDs(c.Filters)
		}
	}
	return next
}

func assignFilterIDs(fs []types.Filter) {
	for i := range fs {
		if fs[i].ID == "" {
			fs[i].ID = types.NewFilterID()
		}
	}
}
