package fsm

import "testing"

func TestViewNumbersStates(t *testing.T) {
	fsmVal71, fsmErr71 := StringFsm(noMinCtx(), keys("ab"))
	g := mustFsm(t, fsmVal71, fsmErr71)
	g.SetEntry(3, g.startState)
	v := g.View()

	if len(v.States) != 3 {
		t.Fatalf("view states = %d, want 3", len(v.States))
	}
	for i, sv := range v.States {
		if sv.Num != i {
			t.Errorf("state %d numbered %d", i, sv.Num)
		}
	}
	if v.Start != v.Entries[3] {
		t.Error("entry 3 must point at the start state")
	}

	start := v.States[v.Start]
	if len(start.Trans) != 1 || start.Trans[0].Plain == nil {
		t.Fatal("start state must show one plain transition")
	}
	if start.Trans[0].Low != 'a' || start.Trans[0].High != 'a' {
		t.Error("transition range wrong in view")
	}
	dest := start.Trans[0].Plain.Dest
	if dest < 0 || v.States[dest].Final {
		t.Error("first transition leads to the middle state")
	}
}

func TestViewErrorDest(t *testing.T) {
	g := NewFsm(noMinCtx())
	s, err := g.addState()
	mustOp(t, err)
	g.SetStartState(s)
	g.attachNewTrans(s, nil, 'a', 'z')
	v := g.View()
	if v.States[0].Trans[0].Plain.Dest != -1 {
		t.Error("error destination must render as -1")
	}
}

func TestViewCondTrans(t *testing.T) {
	ctx := noMinCtx()
	g := NewFsm(ctx)
	s, err := g.addState()
	mustOp(t, err)
	d, err := g.addState()
	mustOp(t, err)
	g.SetStartState(s)
	g.SetFinState(d)

	cond := NewCondAction("guard", 1, 0)
	space := ctx.AddCondSpace(NewCondSet(cond))
	tr := g.attachNewCondTrans(s, 'a', 'z', space)
	g.attachNewCond(tr, s, d, 1)

	v := g.View()
	tv := v.States[0].Trans[0]
	if tv.Plain != nil || len(tv.Conds) != 1 {
		t.Fatal("view must show the conditional shape")
	}
	if tv.Conds[0].Key != 1 || tv.Conds[0].Dest != 1 {
		t.Error("branch key or destination wrong in view")
	}
	if tv.CondSpace != space {
		t.Error("view must expose the condition space")
	}
}
