package fsm

import "errors"

// Reachability marking, pruning and the integrity checks. Pruning runs
// after every structural change that may leave misfits behind.

// markReachableFromHere tags the state and everything forward-reachable
// from it.
func (g *Fsm) markReachableFromHere(s *State) {
	if s == nil || s.isMarked() {
		return
	}
	s.bits |= stbMarked
	for _, t := range s.outList {
		if t.Plain() {
			g.markReachableFromHere(t.Data.ToState)
		} else {
			for _, b := range t.Conds {
				g.markReachableFromHere(b.ToState)
			}
		}
	}
	for _, n := range s.nfaOut {
		g.markReachableFromHere(n.ToState)
	}
}

// markReachableFromHereStopFinal marks forward but does not descend past
// final states.
func (g *Fsm) markReachableFromHereStopFinal(s *State) {
	if s == nil || s.isMarked() {
		return
	}
	s.bits |= stbMarked
	if s.IsFinal() {
		return
	}
	for _, t := range s.outList {
		if t.Plain() {
			g.markReachableFromHereStopFinal(t.Data.ToState)
		} else {
			for _, b := range t.Conds {
				g.markReachableFromHereStopFinal(b.ToState)
			}
		}
	}
	for _, n := range s.nfaOut {
		g.markReachableFromHereStopFinal(n.ToState)
	}
}

// markReachableFromHereReverse tags the state and everything that reaches
// it, walking the in lists.
func (g *Fsm) markReachableFromHereReverse(s *State) {
	if s == nil || s.isMarked() {
		return
	}
	s.bits |= stbMarked
	for _, t := range s.inPlain {
		g.markReachableFromHereReverse(t.Data.FromState)
	}
	for _, b := range s.inCond {
		g.markReachableFromHereReverse(b.FromState)
	}
	for _, n := range s.inNfa {
		g.markReachableFromHereReverse(n.FromState)
	}
}

func (g *Fsm) clearMarks() {
	for s := g.stateList.head; s != nil; s = s.next {
		s.bits &^= stbMarked
	}
	for s := g.misfitList.head; s != nil; s = s.next {
		s.bits &^= stbMarked
	}
}

// removeUnreachableStates deletes states no path from the start reaches.
func (g *Fsm) removeUnreachableStates() {
	g.markReachableFromHere(g.startState)
	for s := g.stateList.head; s != nil; {
		next := s.next
		if !s.isMarked() {
			g.detachState(s)
		}
		s = next
	}
	g.clearMarks()
	g.dropEmptyErrorTrans()
}

// removeDeadEndStates deletes states from which no final state is
// reachable.
func (g *Fsm) removeDeadEndStates() {
	for _, f := range g.finStates() {
		g.markReachableFromHereReverse(f)
	}
	for s := g.stateList.head; s != nil; {
		next := s.next
		if !s.isMarked() {
			g.detachState(s)
		}
		s = next
	}
	g.clearMarks()
	g.dropEmptyErrorTrans()
}

// dropEmptyErrorTrans removes explicit error transitions that carry no
// data; a gap means the same thing. Pruning leaves these behind when it
// deletes a destination.
func (g *Fsm) dropEmptyErrorTrans() {
	for s := g.stateList.head; s != nil; s = s.next {
		for i := 0; i < len(s.outList); {
			t := s.outList[i]
			if t.Plain() {
				if t.Data.ToState == nil && len(t.Data.ActionTable) == 0 &&
					len(t.Data.LmActionTable) == 0 {
					g.detachTrans(s, t)
					continue
				}
				i++
				continue
			}
			for _, b := range append([]*CondBranch(nil), t.Conds...) {
				if b.ToState == nil && len(b.ActionTable) == 0 && len(b.LmActionTable) == 0 {
					t.removeCond(b)
				}
			}
			if len(t.Conds) == 0 {
				g.detachTrans(s, t)
				continue
			}
			i++
		}
	}
}

// removeMisfits deletes everything parked on the misfit list. The start
// state and entry-pointed states survive; the entry map must keep naming
// states of this graph.
func (g *Fsm) removeMisfits() {
	for {
		deleted := false
		for s := g.misfitList.head; s != nil; {
			next := s.next
			if s != g.startState && len(s.entryIDs) == 0 {
				g.detachState(s)
				deleted = true
			}
			s = next
		}
		if !deleted {
			break
		}
	}
	for s := g.misfitList.head; s != nil; {
		next := s.next
		g.moveToMain(s)
		s = next
	}
}

// verifyIntegrity asserts the structural invariants of the graph. A failure
// is a programmer bug and panics.
func (g *Fsm) verifyIntegrity() {
	ops := g.ctx.keyOps
	inGraph := make(map[*State]bool)
	for s := g.stateList.head; s != nil; s = s.next {
		inGraph[s] = true
	}
	for s := g.misfitList.head; s != nil; s = s.next {
		inGraph[s] = true
	}

	for s := range inGraph {
		var prev *Trans
		for _, t := range s.outList {
			if ops.Gt(t.Low, t.High) {
				structuralf("integrity: inverted range [%d..%d]", t.Low, t.High)
			}
			if prev != nil && ops.Ge(prev.High, t.Low) {
				structuralf("integrity: out list not strictly ordered")
			}
			prev = t

			if (t.CondSpace == nil) != (t.Data != nil) {
				structuralf("integrity: transition shape tag broken")
			}
			if t.Plain() {
				g.verifyTransData(inGraph, s, t.Data, t, nil)
			} else {
				for _, b := range t.Conds {
					if b.Owner != t {
						structuralf("integrity: branch owner broken")
					}
					g.verifyTransData(inGraph, s, &b.TransData, nil, b)
				}
			}
		}
	}

	for id, s := range g.entryPoints {
		if !inGraph[s] {
			structuralf("integrity: entry %d names a foreign state", id)
		}
	}
	if g.startState != nil && !inGraph[g.startState] {
		structuralf("integrity: start state not in graph")
	}
	for s := range g.finStateSet {
		if !inGraph[s] {
			structuralf("integrity: final state not in graph")
		}
		if !s.IsFinal() {
			structuralf("integrity: final set member without final bit")
		}
	}
}

func (g *Fsm) verifyTransData(inGraph map[*State]bool, owner *State, d *TransData, t *Trans, b *CondBranch) {
	if d.FromState != owner {
		structuralf("integrity: fromState does not own the out list")
	}
	if d.ToState == nil {
		return
	}
	if !inGraph[d.ToState] {
		structuralf("integrity: transition to foreign state")
	}
	count := 0
	if t != nil {
		for _, in := range d.ToState.inPlain {
			if in == t {
				count++
			}
		}
	} else {
		for _, in := range d.ToState.inCond {
			if in == b {
				count++
			}
		}
	}
	if count != 1 {
		structuralf("integrity: in list reciprocity broken (count %d)", count)
	}
}

// verifyStates walks the state lists checking list membership flags.
func (g *Fsm) verifyStates() {
	for s := g.stateList.head; s != nil; s = s.next {
		if s.onMisfit {
			structuralf("integrity: main list state flagged misfit")
		}
	}
	for s := g.misfitList.head; s != nil; s = s.next {
		if !s.onMisfit {
			structuralf("integrity: misfit list state not flagged")
		}
		if s.foreignInTrans != 0 {
			structuralf("integrity: misfit state has foreign in transitions")
		}
	}
}

// verifyReachability reports states the start state cannot reach.
func (g *Fsm) verifyReachability() error {
	g.markReachableFromHere(g.startState)
	var err error
	for s := g.stateList.head; s != nil; s = s.next {
		if !s.isMarked() {
			err = errors.New("fsm: unreachable states present")
			break
		}
	}
	g.clearMarks()
	return err
}

// verifyNoDeadEndStates reports states that cannot reach a final state.
func (g *Fsm) verifyNoDeadEndStates() error {
	for _, f := range g.finStates() {
		g.markReachableFromHereReverse(f)
	}
	var err error
	for s := g.stateList.head; s != nil; s = s.next {
		if !s.isMarked() {
			err = errors.New("fsm: dead end state present")
			break
		}
	}
	g.clearMarks()
	return err
}

// depthFirstOrdering rebuilds the state list in depth-first order from the
// start state. States the start cannot reach follow at the tail, each
// unvisited one walked depth first in list order.
func (g *Fsm) depthFirstOrdering() {
	var ordered []*State
	var visit func(s *State)
	visit = func(s *State) {
		if s == nil || s.isMarked() {
			return
		}
		s.bits |= stbMarked
		ordered = append(ordered, s)
		for _, t := range s.outList {
			if t.Plain() {
				visit(t.Data.ToState)
			} else {
				for _, b := range t.Conds {
					visit(b.ToState)
				}
			}
		}
		for _, n := range s.nfaOut {
			visit(n.ToState)
		}
	}
	visit(g.startState)
	for s := g.stateList.head; s != nil; s = s.next {
		visit(s)
	}
	g.clearMarks()

	g.stateList = stateRing{}
	for _, s := range ordered {
		s.prev, s.next = nil, nil
		g.stateList.append(s)
	}
}

// sortStatesByFinal moves final states to the end of the list, preserving
// relative order otherwise.
func (g *Fsm) sortStatesByFinal() {
	var nonFinal, final []*State
	for s := g.stateList.head; s != nil; s = s.next {
		if s.IsFinal() {
			final = append(final, s)
		} else {
			nonFinal = append(nonFinal, s)
		}
	}
	g.stateList = stateRing{}
	for _, s := range nonFinal {
		s.prev, s.next = nil, nil
		g.stateList.append(s)
	}
	for _, s := range final {
		s.prev, s.next = nil, nil
		g.stateList.append(s)
	}
}
