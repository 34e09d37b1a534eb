package rules

import (
	"errors"
	"testing"

	"github.com/solatis/stagekeeper/internal/types"
)

func TestNewFilter_Defaults(t *testing.T) {
	f := NewFilter()

	if f.ID == "" {
		t.Error("ID is empty, want fresh id")
	}
	if f.Field != "" {
		t.Errorf("Field = %q, want empty", f.Field)
	}
	if f.Operator != types.FilterEq {
		t.Errorf("Operator = %q, want =", f.Operator)
	}
	if !f.Value.IsNull() {
		t.Error("Value is not null")
	}
	if f.ListID != nil {
		t.Errorf("ListID = %q, want nil", *f.ListID)
	}
}

func TestUpdateFilter(t *testing.T) {
	base := types.Filter{
		ID:       "f1",
		Field:    "country",
		Operator: types.FilterEq,
		Value:    types.ScalarValue(types.TextScalar("GB")),
	}

	tests := []struct {
		name      string
		start     types.Filter
		patch     FilterPatch
		wantOp    types.FilterOperator
		wantNull  bool
		wantList  *string
		wantField string
	}{
		{
			name:      "field change keeps value",
			start:     base,
			patch:     FilterPatch{Field: types.Some("currency")},
			wantOp:    types.FilterEq,
			wantField: "currency",
		},
		{
			name:      "operator change resets value",
			start:     base,
			patch:     FilterPatch{Operator: types.Some(types.FilterNeq)},
			wantOp:    types.FilterNeq,
			wantNull:  true,
			wantField: "country",
		},
		{
			name:  "same operator keeps value",
			start: base,
			patch: FilterPatch{
				Operator: types.Some(types.FilterEq),
			},
			wantOp:    types.FilterEq,
			wantField: "country",
		},
		{
			name: "list operator to list operator resets list",
			start: types.Filter{
				ID: "f2", Field: "counterparty_name", Operator: types.FilterIn,
				ListID: types.StringPtr("hawala"),
			},
			patch:     FilterPatch{Operator: types.Some(types.FilterNotIn)},
			wantOp:    types.FilterNotIn,
			wantNull:  true,
			wantField: "counterparty_name",
		},
		{
			name:  "operator change discards list from same patch",
			start: base,
			patch: FilterPatch{
				Operator: types.Some(types.FilterIn),
				ListID:   types.Some(types.StringPtr("watchlist")),
			},
			wantOp:    types.FilterIn,
			wantNull:  true,
			wantField: "country",
		},
		{
			name:      "list id on value operator is dropped",
			start:     base,
			patch:     FilterPatch{ListID: types.Some(types.StringPtr("pep_a"))},
			wantOp:    types.FilterEq,
			wantField: "country",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpdateFilter(tt.start, tt.patch)
			if got.ID != tt.start.ID {
				t.Errorf("ID = %q, want %q", got.ID, tt.start.ID)
			}
			if got.Operator != tt.wantOp {
				t.Errorf("Operator = %q, want %q", got.Operator, tt.wantOp)
			}
			if got.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", got.Field, tt.wantField)
			}
			if got.Value.IsNull() != tt.wantNull {
				t.Errorf("Value.IsNull() = %v, want %v", got.Value.IsNull(), tt.wantNull)
			}
			if !equalStringPtr(got.ListID, tt.wantList) {
				t.Errorf("ListID = %v, want %v", got.ListID, tt.wantList)
			}
		})
	}
}

func TestUpdateFilter_DoesNotMutateInput(t *testing.T) {
	f := types.Filter{ID: "f1", Field: "amount", Operator: types.FilterGt, Value: types.ScalarValue(types.NumberScalar(5))}
	_ = UpdateFilter(f, FilterPatch{Operator: types.Some(types.FilterLt)})

	if f.Operator != types.FilterGt {
		t.Errorf("input Operator = %q, want >", f.Operator)
	}
	if f.Value.IsNull() {
		t.Error("input Value was cleared")
	}
}

func TestFilterCollection(t *testing.T) {
	var filters []types.Filter
	filters, a := AddFilter(filters)
	filters, b := AddFilter(filters)
	filters, c := AddFilter(filters)

	if len(filters) != 3 {
		t.Fatalf("len = %d, want 3", len(filters))
	}

	updated, err := ReplaceFilter(filters, b, FilterPatch{Field: types.Some("channel")})
	if err != nil {
		t.Fatalf("ReplaceFilter() error = %v", err)
	}
	if updated[1].Field != "channel" {
		t.Errorf("updated[1].Field = %q, want channel", updated[1].Field)
	}
	if filters[1].Field != "" {
		t.Errorf("original collection mutated: %q", filters[1].Field)
	}

	removed, err := RemoveFilter(updated, b)
	if err != nil {
		t.Fatalf("RemoveFilter() error = %v", err)
	}
	if len(removed) != 2 || removed[0].ID != a || removed[1].ID != c {
		t.Errorf("RemoveFilter() order = %v, want [%s %s]", removed, a, c)
	}

	if _, err := RemoveFilter(removed, "missing"); !errors.Is(err, types.ErrFilterNotFound) {
		t.Errorf("RemoveFilter(missing) error = %v, want ErrFilterNotFound", err)
	}
	if _, err := ReplaceFilter(removed, "missing", FilterPatch{}); !errors.Is(err, types.ErrFilterNotFound) {
		t.Errorf("ReplaceFilter(missing) error = %v, want ErrFilterNotFound", err)
	}
}
