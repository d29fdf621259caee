package fsm

import "testing"

func TestCondSpaceInterning(t *testing.T) {
	ctx := testCtx()
	c1 := NewCondAction("c1", 1, 0)
	c2 := NewCondAction("c2", 2, 1)

	s1 := ctx.AddCondSpace(NewCondSet(c1, c2))
	s2 := ctx.AddCondSpace(NewCondSet(c2, c1))
	if s1 != s2 {
		t.Error("same guard set interned to different spaces")
	}
	if s1.FullSize() != 4 {
		t.Errorf("FullSize = %d, want 4", s1.FullSize())
	}

	s3 := ctx.AddCondSpace(NewCondSet(c1))
	if s3 == s1 {
		t.Error("different guard sets share a space")
	}
	if ctx.AddCondSpace(nil) != nil {
		t.Error("empty set must produce no space")
	}
}

func TestExpandCondKey(t *testing.T) {
	ctx := testCtx()
	c1 := NewCondAction("c1", 1, 0)
	c2 := NewCondAction("c2", 2, 1)
	c3 := NewCondAction("c3", 3, 2)

	from := ctx.AddCondSpace(NewCondSet(c1, c2))
	to := ctx.AddCondSpace(NewCondSet(c1, c2, c3))

	// Existing bits carry over; the fill supplies the new bit.
	if got := expandCondKey(0b11, from, to, 0); got != 0b011 {
		t.Errorf("expand(11, fill 0) = %b", got)
	}
	if got := expandCondKey(0b11, from, to, 1); got != 0b111 {
		t.Errorf("expand(11, fill 1) = %b", got)
	}
	if got := expandCondKey(0b00, from, to, 1); got != 0b100 {
		t.Errorf("expand(00, fill 1) = %b", got)
	}

	if got := restrictCondKey(0b111, to, from); got != 0b11 {
		t.Errorf("restrict(111) = %b", got)
	}
	if got := restrictCondKey(0b100, to, from); got != 0b00 {
		t.Errorf("restrict(100) = %b", got)
	}
}

func TestCondValSetExpand(t *testing.T) {
	ctx := testCtx()
	c1 := NewCondAction("c1", 1, 0)
	c2 := NewCondAction("c2", 2, 1)
	from := ctx.AddCondSpace(NewCondSet(c1))
	to := ctx.AddCondSpace(NewCondSet(c1, c2))

	vals := newCondValSet(from)
	vals.set(1)
	got := vals.expand(from, to).keys()
	want := []CondKey{0b01, 0b11}
	if len(got) != len(want) {
		t.Fatalf("expanded keys = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("expanded keys = %v, want %v", got, want)
		}
	}
}

// Expanding a conditional transition's space replicates every entry over
// the added guard.
func TestCondTransExpansion(t *testing.T) {
	ctx := noMinCtx()
	g := NewFsm(ctx)
	from, err := g.addState()
	mustOp(t, err)
	s1, err := g.addState()
	mustOp(t, err)
	s2, err := g.addState()
	mustOp(t, err)

	c1 := NewCondAction("c1", 1, 0)
	c2 := NewCondAction("c2", 2, 1)
	c3 := NewCondAction("c3", 3, 2)
	space := ctx.AddCondSpace(NewCondSet(c1, c2))

	tr := g.attachNewCondTrans(from, 'a', 'z', space)
	g.attachNewCond(tr, from, s1, 0b00)
	g.attachNewCond(tr, from, s2, 0b11)

	merged := ctx.AddCondSpace(NewCondSet(c1, c2, c3))
	nt, err := g.expandTransToSpace(from, tr, merged)
	mustOp(t, err)

	if len(nt.Conds) != 4 {
		t.Fatalf("expanded branch count = %d, want 4", len(nt.Conds))
	}
	wantKeys := []CondKey{0b000, 0b011, 0b100, 0b111}
	wantDest := []*State{s1, s2, s1, s2}
	for i, b := range nt.Conds {
		if b.Key != wantKeys[i] {
			t.Errorf("branch %d key = %b, want %b", i, b.Key, wantKeys[i])
		}
		if b.ToState != wantDest[i] {
			t.Errorf("branch %d destination wrong", i)
		}
	}
	checkIntegrity(t, g)
}
