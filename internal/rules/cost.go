// internal/rules/cost.go
package rules

import "github.com/solatis/stagekeeper/internal/types"

/*
 * Cost model for evaluator scheduling.
 *
 * Estimates the relative cost of evaluating a rule so submitted documents can
 * be ordered by priority. The estimate is advisory and is not part of the
 * canonical document.
 *
 * Condition cost:
 *   lookup + operator_cost * kind_multiplier * aggregate_cost * window_mult
 *     + filter costs + reference join
 *
 * Stage cost:
 *   condition costs + row filter costs + grouping + correlation + dependency
 *
 * window_mult is 1 + days/30, so a 90-day aggregate costs four times an
 * unwindowed one. A reference threshold joins against an earlier stage.
 */

const (
	// Operator base costs
	CostEq       = 5
	CostNeq      = 5
	CostOrdering = 7
	CostIn       = 8
	CostContains = 10

	// Aggregate base costs
	CostAggNone     = 1
	CostAggCount    = 2
	CostAggNumeric  = 4
	CostAggMode     = 8
	CostAggDistinct = 16

	// Field lookup cost per condition or filter
	CostLookupPerField = 128

	// Field kind multipliers
	MultiplierNumeric  = 4
	MultiplierCategory = 16
	MultiplierText     = 48
	MultiplierList     = 128

	// Stage structure costs
	CostGroupByField    = 64
	CostCorrelationKey  = 96
	CostStageDependency = 512
	CostReferenceJoin   = 256
	WindowDaysPerUnit   = 30
	OrPenaltyPerStage   = 10

	// Base priority offset
	BasePriority = 1000
)

// StageCost is the estimate for one stage.
type StageCost struct {
	StageNumber    int
	Cost           int
	ConditionCosts []int
}

// CostEstimate is the estimate for a whole rule.
type CostEstimate struct {
	Stages   []StageCost
	Total    int
	Priority int
}

// EstimateCost computes the cost estimate of r. Fields unknown to cat are
// costed at the list multiplier.
func EstimateCost(r types.Rule, cat *Catalog) CostEstimate {
	if cat == nil {
		cat = DefaultCatalog()
	}
	est := CostEstimate{Stages: make([]StageCost, 0, len(r.Stages))}
	for _, s := range r.Stages {
		sc := StageCost{StageNumber: s.StageNumber, ConditionCosts: make([]int, 0, len(s.Conditions))}
		for _, c := range s.Conditions {
			cc := CalculateConditionCost(c, cat)
			sc.ConditionCosts = append(sc.ConditionCosts, cc)
			sc.Cost += cc
		}
		sc.Cost += filtersCost(s.RowFilters, cat)
		if !s.GroupBy.IsNull() {
			sc.Cost += len(s.GroupBy.Fields()) * CostGroupByField
		}
		sc.Cost += len(s.CorrelationKeys) * CostCorrelationKey
		if s.DependsOnStage != nil {
			sc.Cost += CostStageDependency
		}
		est.Stages = append(est.Stages, sc)
		est.Total += sc.Cost
	}

	orPenalty := 0
	if r.LogicType == types.LogicOr {
		orPenalty = len(r.Stages) * OrPenaltyPerStage
	}
	est.Priority = BasePriority + est.Total + orPenalty
	return est
}

// CalculateConditionCost computes the cost of a single condition.
func CalculateConditionCost(c types.Condition, cat *Catalog) int {
	kind, ok := cat.KindOf(c.TargetField)
	if !ok {
		kind = FieldList
	}
	cost := CostLookupPerField +
		conditionOperatorCost(c.Operator)*kindMultiplier(kind)*aggregateCost(c.AggregateFunction)*windowMultiplier(c.TimeWindow)
	cost += filtersCost(c.Filters, cat)
	if c.ThresholdType == types.ThresholdReference {
		cost += CostReferenceJoin
	}
	return cost
}

func filtersCost(fs []types.Filter, cat *Catalog) int {
	total := 0
	for _, f := range fs {
		kind, ok := cat.Kind(f.Field)
		if !ok {
			kind = FieldList
		}
		total += CostLookupPerField + filterOperatorCost(f.Operator)*kindMultiplier(kind)
	}
	return total
}

func conditionOperatorCost(op types.ConditionOperator) int {
	switch {
	case op.IsOrdering():
		return CostOrdering
	case op.IsMembership():
		return CostIn
	case op.IsTextual():
		return CostContains
	default:
		return CostEq
	}
}

func filterOperatorCost(op types.FilterOperator) int {
	switch {
	case op.IsOrdering():
		return CostOrdering
	case op.IsListBased():
		return CostIn
	case op == types.FilterContains:
		return CostContains
	default:
		return CostEq
	}
}

func aggregateCost(agg types.AggregateFunction) int {
	switch agg {
	case types.AggNone:
		return CostAggNone
	case types.AggCount:
		return CostAggCount
	case types.AggSum, types.AggAvg, types.AggMax, types.AggMin:
		return CostAggNumeric
	case types.AggMode:
		return CostAggMode
	default:
		return CostAggDistinct
	}
}

// kindMultiplier returns the comparison cost multiplier of a field kind.
// List fields resolve through an external registry.
func kindMultiplier(k FieldKind) int {
	switch k {
	case FieldNumeric:
		return MultiplierNumeric
	case FieldCategory:
		return MultiplierCategory
	case FieldText:
		return MultiplierText
	default:
		return MultiplierList
	}
}

func windowMultiplier(days *int) int {
	if days == nil || *days <= 0 {
		return 1
	}
	return 1 + *days/WindowDaysPerUnit
}
