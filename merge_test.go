package fsm

import (
	"errors"
	"testing"
)

func TestStateSetKey(t *testing.T) {
	g := NewFsm(testCtx())
	var states []*State
	for i := 0; i < 3; i++ {
		s, err := g.addState()
		mustOp(t, err)
		states = append(states, s)
	}
	k1 := stateSetKey([]*State{states[0], states[2]})
	k2 := stateSetKey([]*State{states[0], states[2]})
	k3 := stateSetKey([]*State{states[0], states[1]})
	if k1 != k2 {
		t.Error("equal sets must produce equal keys")
	}
	if k1 == k3 {
		t.Error("different sets must produce different keys")
	}
}

func TestDictTargetInterning(t *testing.T) {
	g := NewFsm(testCtx())
	s1, err := g.addState()
	mustOp(t, err)
	s2, err := g.addState()
	mustOp(t, err)

	md := newMergeData()
	d1, err := g.dictTarget(md, []*State{s1, s2})
	mustOp(t, err)
	d2, err := g.dictTarget(md, []*State{s1, s2})
	mustOp(t, err)
	if d1 != d2 {
		t.Error("same set must map to the same target state")
	}
	if len(md.fill) != 1 {
		t.Errorf("fill queue length = %d, want 1", len(md.fill))
	}
	single, err := g.dictTarget(md, []*State{s1})
	mustOp(t, err)
	if single != s1 {
		t.Error("singleton set is the state itself")
	}
}

func TestCondCostGuard(t *testing.T) {
	g := NewFsm(testCtx())
	md := newMergeData()
	act := NewAction("costly", 1)
	act.CostMark = true
	act.CostID = 3

	var d TransData
	d.ActionTable.SetAction(0, act)

	var err error
	for i := 0; i <= condCostThreshold; i++ {
		if err = g.chargeCondCost(md, &d); err != nil {
			break
		}
	}
	var cc *CondCostTooHighError
	if !errors.As(err, &cc) {
		t.Fatalf("expected CondCostTooHighError, got %v", err)
	}
	if cc.CostID != 3 {
		t.Errorf("cost id = %d, want 3", cc.CostID)
	}
}

// Pending out conditions on a final state turn the stitched transitions of
// a concatenation into conditional transitions.
func TestLeaveConditionThroughConcat(t *testing.T) {
	ctx := noMinCtx()
	fsmVal15, fsmErr15 := KeyFsm(ctx, 'a')
	g := mustFsm(t, fsmVal15, fsmErr15)
	cond := NewCondAction("inRange", 1, 0)
	g.LeaveFsmCondition(cond, true)

	fsmVal16, fsmErr16 := KeyFsm(ctx, 'b')
	o := mustFsm(t, fsmVal16, fsmErr16)
	mustOp(t, g.ConcatOp(o))

	// Find the stitched transition on b.
	var bTrans *Trans
	for s := g.stateList.head; s != nil; s = s.next {
		if tr := findTrans(s, 'b'); tr != nil {
			bTrans = tr
		}
	}
	if bTrans == nil {
		t.Fatal("missing stitched transition")
	}
	if bTrans.Plain() {
		t.Fatal("stitched transition must be conditional")
	}
	if len(bTrans.Conds) != 1 {
		t.Fatalf("branch count = %d, want 1", len(bTrans.Conds))
	}
	if bTrans.Conds[0].Key != 1 {
		t.Errorf("branch key = %d, want 1 (condition required true)", bTrans.Conds[0].Key)
	}
	checkIntegrity(t, g)
}

// Pending out actions land on the stitched transitions.
func TestLeaveActionThroughConcat(t *testing.T) {
	ctx := noMinCtx()
	fsmVal17, fsmErr17 := KeyFsm(ctx, 'a')
	g := mustFsm(t, fsmVal17, fsmErr17)
	act := NewAction("leave", 1)
	g.LeaveFsmAction(0, act)

	fsmVal18, fsmErr18 := KeyFsm(ctx, 'b')
	o := mustFsm(t, fsmVal18, fsmErr18)
	mustOp(t, g.ConcatOp(o))

	var bTrans *Trans
	for s := g.stateList.head; s != nil; s = s.next {
		if tr := findTrans(s, 'b'); tr != nil {
			bTrans = tr
		}
	}
	if bTrans == nil || !bTrans.Plain() {
		t.Fatal("missing stitched plain transition")
	}
	if !bTrans.Data.ActionTable.Has(act) {
		t.Error("leave action must ride the stitched transition")
	}
	// The a transition is untouched.
	aTrans := findTrans(g.startState, 'a')
	if aTrans == nil || aTrans.Data.ActionTable.Has(act) {
		t.Error("leave action must not land on the first machine's transitions")
	}
}

// Merging states with different out condition spaces expands both value
// vectors into the union space.
func TestMergeOutCondSpaces(t *testing.T) {
	ctx := noMinCtx()
	g := NewFsm(ctx)
	a, err := g.addState()
	mustOp(t, err)
	b, err := g.addState()
	mustOp(t, err)

	c1 := NewCondAction("c1", 1, 0)
	c2 := NewCondAction("c2", 2, 1)
	s1 := ctx.AddCondSpace(NewCondSet(c1))
	s2 := ctx.AddCondSpace(NewCondSet(c2))

	a.outCondSpace = s1
	a.outCondVals = newCondValSet(s1)
	a.outCondVals.set(1)
	b.outCondSpace = s2
	b.outCondVals = newCondValSet(s2)
	b.outCondVals.set(0)

	g.mergeStateData(a, b)
	if a.outCondSpace.FullSize() != 4 {
		t.Fatalf("merged space full size = %d, want 4", a.outCondSpace.FullSize())
	}
	got := a.outCondVals.keys()
	// c1 required true expands to {01, 11}; c2 required false to {00, 01}.
	want := map[CondKey]bool{0b00: true, 0b01: true, 0b11: true}
	if len(got) != len(want) {
		t.Fatalf("merged values = %v", got)
	}
	for _, k := range got {
		if !want[k] {
			t.Errorf("unexpected merged value %b", k)
		}
	}
}
