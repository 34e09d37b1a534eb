package rules

import "github.com/solatis/stagekeeper/internal/types"

// Deep copies. Every operation in this package works on copies so that a
// Rule handed to a caller is never changed underneath it.

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFilter(f types.Filter) types.Filter {
	f.ListID = cloneStringPtr(f.ListID)
	f.Value = cloneFilterValue(f.Value)
	return f
}

func cloneFilterValue(v types.FilterValue) types.FilterValue {
	switch {
	case v.IsNull():
		return types.NullValue()
	case v.IsList():
		return types.ListValue(v.Scalars()...)
	default:
		return types.ScalarValue(v.Scalars()[0])
	}
}

func cloneFilters(fs []types.Filter) []types.Filter {
	if fs == nil {
		return nil
	}
	out := make([]types.Filter, len(fs))
	for i, f := range fs {
		out[i] = cloneFilter(f)
	}
	return out
}

func cloneCondition(c types.Condition) types.Condition {
	c.TargetField = cloneStringPtr(c.TargetField)
	c.TimeWindow = cloneIntPtr(c.TimeWindow)
	c.SelectedList = cloneStringPtr(c.SelectedList)
	c.TransactionType = cloneStringPtr(c.TransactionType)
	if c.ReferenceStage != nil {
		ref := *c.ReferenceStage
		c.ReferenceStage = &ref
	}
	c.Filters = cloneFilters(c.Filters)
	return c
}

func cloneStage(s types.Stage) types.Stage {
	s.DependsOnStage = cloneIntPtr(s.DependsOnStage)
	s.TimeWindowDays = cloneIntPtr(s.TimeWindowDays)
	s.OutputName = cloneStringPtr(s.OutputName)
	s.StageTimeWindowDays = cloneIntPtr(s.StageTimeWindowDays)
	if s.GroupBy.IsList() {
		s.GroupBy = types.GroupByFields(s.GroupBy.Fields()...)
	} else if !s.GroupBy.IsNull() {
		s.GroupBy = types.GroupByField(s.GroupBy.Fields()[0])
	}
	if s.CorrelationKeys != nil {
		s.CorrelationKeys = append([]string(nil), s.CorrelationKeys...)
	}
	s.RowFilters = cloneFilters(s.RowFilters)
	if s.Conditions != nil {
		conds := make([]types.Condition, len(s.Conditions))
		for i, c := range s.Conditions {
			conds[i] = cloneCondition(c)
		}
		s.Conditions = conds
	}
	if s.Metadata != nil {
		md := make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return s
}

func cloneStages(stages []types.Stage) []types.Stage {
	if stages == nil {
		return nil
	}
	out := make([]types.Stage, len(stages))
	for i, s := range stages {
		out[i] = cloneStage(s)
	}
	return out
}

// CloneRule returns a deep copy of r.
func CloneRule(r types.Rule) types.Rule {
	r.Stages = cloneStages(r.Stages)
	return r
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
