package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/solatis/stagekeeper/internal/types"
)

func TestNewCatalog_LaterDuplicateWins(t *testing.T) {
	cat := NewCatalog([]FieldSpec{
		{Name: "amount", Kind: FieldText},
		{Name: "country", Kind: FieldCategory},
		{Name: "amount", Kind: FieldNumeric},
	}, nil, nil)

	if kind, _ := cat.Kind("amount"); kind != FieldNumeric {
		t.Errorf("Kind(amount) = %v, want %v", kind, FieldNumeric)
	}
	if got := len(cat.Fields()); got != 2 {
		t.Errorf("len(Fields()) = %v, want 2", got)
	}
	if _, ok, err := cat.LookupList(context.Background(), "pep_a"); ok || err != nil {
		t.Errorf("LookupList(pep_a) = %v, %v; want not found with nil registry", ok, err)
	}
}

func TestParseFieldKind(t *testing.T) {
	for _, s := range []string{"numeric", "text", "category", "list"} {
		if _, err := ParseFieldKind(s); err != nil {
			t.Errorf("ParseFieldKind(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFieldKind("decimal"); !errors.Is(err, types.ErrInvalidEnum) {
		t.Errorf("ParseFieldKind(decimal) error = %v, want ErrInvalidEnum", err)
	}
}

func TestCatalog_WithLists(t *testing.T) {
	base := DefaultCatalog()
	scoped := base.WithLists(StaticLists{{ID: "tenant_block", Name: "Blocklist"}})

	ctx := context.Background()
	if _, ok, _ := scoped.LookupList(ctx, "tenant_block"); !ok {
		t.Error("scoped catalog cannot resolve its own list")
	}
	if _, ok, _ := scoped.LookupList(ctx, "pep_a"); ok {
		t.Error("scoped catalog resolves a default list")
	}
	if _, ok, _ := base.LookupList(ctx, "pep_a"); !ok {
		t.Error("base catalog changed by WithLists")
	}
	if kind, _ := scoped.Kind("amount"); kind != FieldNumeric {
		t.Errorf("scoped Kind(amount) = %v, want numeric", kind)
	}
}

func TestCatalog_NormalizeRule(t *testing.T) {
	r := NewRule()
	sid, cid := r.Stages[0].ID, r.Stages[0].Conditions[0].ID
	r, _ = PatchCondition(r, sid, cid, ConditionPatch{
		TargetField:   types.Some(types.StringPtr("amount")),
		ThresholdType: types.Some(types.ThresholdPercentage),
	})

	// Switching to a category field outside an edit leaves the type stale until normalized.
	r.Stages[0].Conditions[0].TargetField = types.StringPtr("country")

	got := DefaultCatalog().NormalizeRule(r)
	if tt := got.Stages[0].Conditions[0].ThresholdType; tt != types.ThresholdLiteral {
		t.Errorf("ThresholdType = %v, want literal", tt)
	}
	if tt := r.Stages[0].Conditions[0].ThresholdType; tt != types.ThresholdPercentage {
		t.Errorf("input mutated: ThresholdType = %v", tt)
	}
}

type failingLists struct{}

func (failingLists) Lookup(context.Context, string) (ListRef, bool, error) {
	return ListRef{}, false, errors.New("registry down")
}

func TestChainedLists(t *testing.T) {
	ctx := context.Background()
	tenant := StaticLists{{ID: "pep_a", Name: "Tenant PEP"}}
	chain := ChainedLists{tenant, nil, DefaultLists}

	ref, ok, err := chain.Lookup(ctx, "pep_a")
	if err != nil || !ok || ref.Name != "Tenant PEP" {
		t.Errorf("Lookup(pep_a) = %v, %v, %v, want tenant entry", ref, ok, err)
	}
	if _, ok, _ := chain.Lookup(ctx, "hawala"); !ok {
		t.Error("Lookup(hawala) did not fall through to the defaults")
	}
	if _, ok, _ := chain.Lookup(ctx, "nope"); ok {
		t.Error("Lookup(nope) = found, want missing")
	}
	if _, _, err := (ChainedLists{failingLists{}, DefaultLists}).Lookup(ctx, "pep_a"); err == nil {
		t.Error("Lookup through failing registry returned no error")
	}
	if got := DefaultCatalog().Lists(); got == nil {
		t.Error("DefaultCatalog().Lists() = nil")
	}
}
