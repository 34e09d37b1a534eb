package rules

import "github.com/solatis/stagekeeper/internal/types"

// FilterPatch is a partial update of a Filter. Absent fields are left unchanged.
type FilterPatch struct {
	Field    types.Maybe[string]
	Operator types.Maybe[types.FilterOperator]
	Value    types.Maybe[types.FilterValue]
	ListID   types.Maybe[*string]
	Negate   types.Maybe[bool]
}

// NewFilter returns a filter with a fresh id, empty field, "=" operator and null value.
func NewFilter() types.Filter {
	return types.Filter{
		ID:       types.NewFilterID(),
		Operator: types.FilterEq,
		Value:    types.NullValue(),
	}
}

// UpdateFilter merges p over f. Changing the operator resets value and listId,
// even when both operators are list-based, forcing re-selection.
func UpdateFilter(f types.Filter, p FilterPatch) types.Filter {
	next := cloneFilter(f)
	if p.Field.Set {
		next.Field = p.Field.Value
	}
	if p.Operator.Set {
		next.Operator = p.Operator.Value
	}
	if p.Value.Set {
		next.Value = cloneFilterValue(p.Value.Value)
	}
	if p.ListID.Set {
		next.ListID = cloneStringPtr(p.ListID.Value)
	}
	if p.Negate.Set {
		next.Negate = p.Negate.Value
	}
	runUpdateRules(filterUpdateRules, f, p, &next)
	normalizeFilter(&next)
	return next
}

// AddFilter appends a new filter and returns the collection and the new filter's id.
func AddFilter(filters []types.Filter) ([]types.Filter, types.FilterID) {
	f := NewFilter()
	out := append(cloneFilters(filters), f)
	return out, f.ID
}

// ReplaceFilter applies p to the filter with the given id.
func ReplaceFilter(filters []types.Filter, id types.FilterID, p FilterPatch) ([]types.Filter, error) {
	idx := indexOfFilter(filters, id)
	if idx < 0 {
		return filters, types.ErrFilterNotFound
	}
	out := cloneFilters(filters)
	out[idx] = UpdateFilter(filters[idx], p)
	return out, nil
}

// RemoveFilter returns the collection without the filter, preserving order of the rest.
func RemoveFilter(filters []types.Filter, id types.FilterID) ([]types.Filter, error) {
	idx := indexOfFilter(filters, id)
	if idx < 0 {
		return filters, types.ErrFilterNotFound
	}
	out := make([]types.Filter, 0, len(filters)-1)
	for i, f := range filters {
		if i != idx {
			out = append(out, cloneFilter(f))
		}
	}
	return out, nil
}

func indexOfFilter(filters []types.Filter, id types.FilterID) int {
	for i, f := range filters {
		if f.ID == id {
			return i
		}
	}
	return -1
}
