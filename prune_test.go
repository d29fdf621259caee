package fsm

import "testing"

func TestRemoveUnreachableStates(t *testing.T) {
	g := NewFsm(noMinCtx())
	start, err := g.addState()
	mustOp(t, err)
	live, err := g.addState()
	mustOp(t, err)
	orphan, err := g.addState()
	mustOp(t, err)
	orphanTarget, err := g.addState()
	mustOp(t, err)

	g.SetStartState(start)
	g.attachNewTrans(start, live, 'a', 'a')
	g.attachNewTrans(orphan, orphanTarget, 'b', 'b')
	g.attachNewTrans(orphan, live, 'c', 'c')
	g.SetFinState(live)

	g.removeUnreachableStates()
	if got := stateCount(g); got != 2 {
		t.Fatalf("state count = %d, want 2", got)
	}
	if err := g.verifyReachability(); err != nil {
		t.Errorf("reachability after pruning: %v", err)
	}
	checkIntegrity(t, g)
}

func TestRemoveDeadEndStates(t *testing.T) {
	g := NewFsm(noMinCtx())
	start, err := g.addState()
	mustOp(t, err)
	fin, err := g.addState()
	mustOp(t, err)
	trap, err := g.addState()
	mustOp(t, err)

	g.SetStartState(start)
	g.attachNewTrans(start, fin, 'a', 'a')
	g.attachNewTrans(start, trap, 'b', 'b')
	g.attachNewTrans(trap, trap, 'b', 'b')
	g.SetFinState(fin)

	g.removeDeadEndStates()
	if got := stateCount(g); got != 2 {
		t.Fatalf("state count = %d, want 2", got)
	}
	if err := g.verifyNoDeadEndStates(); err != nil {
		t.Errorf("dead ends after pruning: %v", err)
	}
	// The transition into the trap is gone entirely, not left as an
	// explicit error transition.
	if findTrans(start, 'b') != nil {
		t.Error("dangling transition into removed state must disappear")
	}
	checkIntegrity(t, g)
}

func TestVerifyReachabilityReportsOrphans(t *testing.T) {
	g := NewFsm(noMinCtx())
	start, err := g.addState()
	mustOp(t, err)
	_, err = g.addState()
	mustOp(t, err)
	g.SetStartState(start)
	if err := g.verifyReachability(); err == nil {
		t.Error("orphan state must fail the reachability check")
	}
}

func TestIntegrityAfterOperators(t *testing.T) {
	ctx := testCtx()
	fsmVal66, fsmErr66 := StringFsm(ctx, keys("if"))
	g := mustFsm(t, fsmVal66, fsmErr66)
	fsmVal67, fsmErr67 := StringFsm(ctx, keys("int"))
	o := mustFsm(t, fsmVal67, fsmErr67)
	mustOp(t, g.UnionOp(o))
	fsmVal68, fsmErr68 := RangeFsm(ctx, 'a', 'z')
	o2 := mustFsm(t, fsmVal68, fsmErr68)
	mustOp(t, o2.StarOp())
	mustOp(t, g.ConcatOp(o2))
	checkIntegrity(t, g)
	if err := g.verifyReachability(); err != nil {
		t.Errorf("reachability: %v", err)
	}
}

func TestDepthFirstOrdering(t *testing.T) {
	ctx := noMinCtx()
	fsmVal69, fsmErr69 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal69, fsmErr69)
	g.depthFirstOrdering()
	g.setStateNumbers(0)
	if stateNum(g.startState) != 0 {
		t.Error("start state must come first in depth first order")
	}
}

func TestSortStatesByFinal(t *testing.T) {
	ctx := noMinCtx()
	fsmVal70, fsmErr70 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal70, fsmErr70)
	g.sortStatesByFinal()
	last := g.stateList.tail
	if !last.IsFinal() {
		t.Error("final states must sort to the end")
	}
	if g.stateList.head.IsFinal() {
		t.Error("non-final states must sort to the front")
	}
}
