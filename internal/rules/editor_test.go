package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/solatis/stagekeeper/internal/types"
)

func newTestEditor(r types.Rule) *Editor {
	return NewEditor(r, DefaultCatalog(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEditor_ApplyAndSnapshot(t *testing.T) {
	e := newTestEditor(NewRule())
	before := e.Snapshot()

	err := e.Apply(func(r types.Rule) (types.Rule, error) {
		next, _ := AddStage(r)
		return next, nil
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(before.Stages) != 1 {
		t.Errorf("earlier snapshot changed: %d stages", len(before.Stages))
	}
	if got := len(e.Snapshot().Stages); got != 2 {
		t.Errorf("len(Stages) = %d, want 2", got)
	}
}

func TestEditor_RefusalKeepsValue(t *testing.T) {
	e := newTestEditor(NewRule())
	r := e.Snapshot()

	err := e.Apply(func(cur types.Rule) (types.Rule, error) {
		return RemoveConditionFromStage(cur, cur.Stages[0].ID, cur.Stages[0].Conditions[0].ID)
	})
	if !errors.Is(err, types.ErrLastCondition) {
		t.Fatalf("Apply() error = %v, want ErrLastCondition", err)
	}
	if got := e.Snapshot(); len(got.Stages[0].Conditions) != 1 || got.Stages[0].ID != r.Stages[0].ID {
		t.Errorf("rule changed after refusal")
	}

	if _, err := e.RemoveStage(r.Stages[0].ID); !errors.Is(err, types.ErrLastStage) {
		t.Errorf("RemoveStage() error = %v, want ErrLastStage", err)
	}
}

func TestEditor_NormalizesNonNumericThresholdType(t *testing.T) {
	e := newTestEditor(NewRule())
	r := e.Snapshot()
	sid, cid := r.Stages[0].ID, r.Stages[0].Conditions[0].ID

	err := e.Apply(func(cur types.Rule) (types.Rule, error) {
		return PatchCondition(cur, sid, cid, ConditionPatch{
			TargetField:   types.Some(types.StringPtr("country")),
			ThresholdType: types.Some(types.ThresholdPercentage),
		})
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := e.Snapshot().Stages[0].Conditions[0].ThresholdType; got != types.ThresholdLiteral {
		t.Errorf("ThresholdType = %q, want literal for category field", got)
	}
}

func TestEditor_RemoveStageRecordsRepairs(t *testing.T) {
	e := newTestEditor(validRule())
	r := e.Snapshot()

	repairs, err := e.RemoveStage(r.Stages[0].ID)
	if err != nil {
		t.Fatalf("RemoveStage() error = %v", err)
	}
	// Stage 2 depended on stage 1 and referenced it.
	if len(repairs) != 2 {
		t.Fatalf("repairs = %+v, want 2", repairs)
	}
	if got := e.Repairs(); len(got) != 2 {
		t.Errorf("Repairs() = %d, want 2", len(got))
	}

	errs, err := e.Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if errs.HasCode(CodeDanglingReference) || errs.HasCode(CodeForwardReference) {
		t.Errorf("Validate() after repair = %v, want no reference errors", errs)
	}
}

func TestEditor_ConcurrentApply(t *testing.T) {
	e := newTestEditor(NewRule())
	sid := e.Snapshot().Stages[0].ID

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Apply(func(r types.Rule) (types.Rule, error) {
				next, _, err := AddConditionToStage(r, sid)
				return next, err
			})
			_ = e.Snapshot()
		}()
	}
	wg.Wait()

	if got := len(e.Snapshot().Stages[0].Conditions); got != workers+1 {
		t.Errorf("len(Conditions) = %d, want %d", got, workers+1)
	}
}

func TestEditor_Canonicalize(t *testing.T) {
	e := newTestEditor(validRule())

	doc, err := e.Canonicalize(context.Background())
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}
	want, _ := Canonicalize(context.Background(), validRule(), DefaultCatalog())
	if doc.Digest != want.Digest {
		t.Errorf("Digest = %s, want %s", doc.Digest, want.Digest)
	}
}

// chainRule builds n stages where every stage after the first depends on and
// references its predecessor.
func chainRule(n int) types.Rule {
	r := NewRule()
	for k := 2; k <= n; k++ {
		var sid types.StageID
		r, sid = AddStage(r)
		cid := r.Stages[k-1].Conditions[0].ID
		r, _ = PatchStage(r, sid, StagePatch{DependsOnStage: types.Some(types.IntPtr(k - 1))})
		r, _ = PatchCondition(r, sid, cid, ConditionPatch{
			AggregateFunction: types.Some(types.AggSum),
			TargetField:       types.Some(types.StringPtr("amount")),
			Operator:          types.Some(types.CondGt),
			ThresholdType:     types.Some(types.ThresholdReference),
		})
		prev := k - 1
		r, _ = EditCondition(r, sid, cid, func(c types.Condition) (types.Condition, error) {
			return SelectReferenceStage(c, prev), nil
		})
	}
	return r
}

func TestEditor_ConcurrentRemoveStageKeepsRepairOrder(t *testing.T) {
	const stages = 8
	e := newTestEditor(chainRule(stages))

	// Removing the head of the chain detaches the next stage's condition,
	// so detached conditions must appear in chain order.
	var want []types.ConditionID
	for _, s := range e.Snapshot().Stages[1:] {
		want = append(want, s.Conditions[0].ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				head := e.Snapshot().Stages[0].ID
				_, err := e.RemoveStage(head)
				if errors.Is(err, types.ErrLastStage) {
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = e.Apply(func(r types.Rule) (types.Rule, error) {
					return SetLogicType(r, types.LogicOr), nil
				})
			}
		}()
	}
	wg.Wait()

	var got []types.ConditionID
	for _, rp := range e.Repairs() {
		if rp.ConditionID != "" {
			got = append(got, rp.ConditionID)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("detached conditions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("detached condition %d = %s, want %s", i, got[i], want[i])
		}
	}
}
