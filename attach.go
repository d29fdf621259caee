package fsm

import "sort"

// Attachment and detachment. Everything that touches the reciprocal in/out
// lists funnels through here; operators never edit links directly.

// attachNewTrans makes a new plain transition covering [lo, hi] from one
// state to another. A nil destination means the error state. Overlapping an
// existing range is a programmer bug.
func (g *Fsm) attachNewTrans(from, to *State, lo, hi Key) *Trans {
	g.ctx.keyOps.checkRange(lo, hi)
	t := newPlainTrans(lo, hi)
	t.Data.FromState = from
	g.insertTransSorted(from, t)
	if to != nil {
		g.attachPlainTo(from, to, t)
	}
	return t
}

// attachNewCondTrans makes a new conditional transition with an empty branch
// list over the given space.
func (g *Fsm) attachNewCondTrans(from *State, lo, hi Key, space *CondSpace) *Trans {
	g.ctx.keyOps.checkRange(lo, hi)
	if space == nil {
		structuralf("conditional transition requires a condition space")
	}
	t := newCondTrans(lo, hi, space)
	g.insertTransSorted(from, t)
	return t
}

// attachNewCond adds a branch for the condition value to an existing
// conditional transition.
func (g *Fsm) attachNewCond(trans *Trans, from, to *State, key CondKey) *CondBranch {
	if trans.Plain() {
		structuralf("condition branch added to a plain transition")
	}
	b := &CondBranch{Owner: trans, Key: key}
	b.FromState = from
	trans.insertCond(b)
	if to != nil {
		g.attachCondTo(from, to, b)
	}
	return b
}

// insertTransSorted places the transition in the from state's out list,
// panicking on range overlap.
func (g *Fsm) insertTransSorted(from *State, t *Trans) {
	ops := g.ctx.keyOps
	i := sort.Search(len(from.outList), func(i int) bool {
		return ops.Ge(from.outList[i].Low, t.Low)
	})
	if i > 0 && ops.Ge(from.outList[i-1].High, t.Low) {
		structuralf("range [%d..%d] overlaps [%d..%d]", t.Low, t.High,
			from.outList[i-1].Low, from.outList[i-1].High)
	}
	if i < len(from.outList) && ops.Le(from.outList[i].Low, t.High) {
		structuralf("range [%d..%d] overlaps [%d..%d]", t.Low, t.High,
			from.outList[i].Low, from.outList[i].High)
	}
	from.outList = append(from.outList, nil)
	copy(from.outList[i+1:], from.outList[i:])
	from.outList[i] = t
}

func (g *Fsm) removeFromOutList(from *State, t *Trans) {
	for i, o := range from.outList {
		if o == t {
			from.outList = append(from.outList[:i], from.outList[i+1:]...)
			return
		}
	}
	structuralf("transition not found in out list")
}

// attachPlainTo links a plain transition into its destination's in list.
func (g *Fsm) attachPlainTo(from, to *State, t *Trans) {
	t.Data.FromState = from
	t.Data.ToState = to
	to.inPlain = append(to.inPlain, t)
	g.countForeignIn(from, to)
}

// attachCondTo links a condition branch into its destination's in list.
func (g *Fsm) attachCondTo(from, to *State, b *CondBranch) {
	b.FromState = from
	b.ToState = to
	to.inCond = append(to.inCond, b)
	g.countForeignIn(from, to)
}

func (g *Fsm) countForeignIn(from, to *State) {
	if from != to {
		to.foreignInTrans++
		if g.misfitAccounting && to.foreignInTrans == 1 {
			g.moveToMain(to)
		}
	}
}

func (g *Fsm) discountForeignIn(from, to *State) {
	if from != to {
		to.foreignInTrans--
		if to.foreignInTrans < 0 {
			structuralf("foreign in transition count went negative")
		}
		if g.misfitAccounting && to.foreignInTrans == 0 {
			g.moveToMisfit(to)
		}
	}
}

// detachPlainTo unlinks a plain transition from its destination, leaving it
// in the out list pointing at error.
func (g *Fsm) detachPlainTo(t *Trans) {
	to := t.Data.ToState
	if to == nil {
		return
	}
	removePlainIn(to, t)
	t.Data.ToState = nil
	g.discountForeignIn(t.Data.FromState, to)
}

func (g *Fsm) detachCondTo(b *CondBranch) {
	to := b.ToState
	if to == nil {
		return
	}
	removeCondIn(to, b)
	b.ToState = nil
	g.discountForeignIn(b.FromState, to)
}

func removePlainIn(to *State, t *Trans) {
	for i, o := range to.inPlain {
		if o == t {
			to.inPlain = append(to.inPlain[:i], to.inPlain[i+1:]...)
			return
		}
	}
	structuralf("plain in list missing reciprocal entry")
}

func removeCondIn(to *State, b *CondBranch) {
	for i, o := range to.inCond {
		if o == b {
			to.inCond = append(to.inCond[:i], to.inCond[i+1:]...)
			return
		}
	}
	structuralf("cond in list missing reciprocal entry")
}

// redirectErrorTrans points a transition currently going to error at a real
// state.
func (g *Fsm) redirectErrorTrans(from, to *State, t *Trans) {
	if !t.Plain() || t.Data.ToState != nil {
		structuralf("redirect of a non-error transition")
	}
	g.attachPlainTo(from, to, t)
}

// detachTrans fully removes a transition: destination links and out list.
func (g *Fsm) detachTrans(from *State, t *Trans) {
	if t.Plain() {
		g.detachPlainTo(t)
	} else {
		for _, b := range t.Conds {
			g.detachCondTo(b)
		}
	}
	g.removeFromOutList(from, t)
}

// detachStateOut removes all out transitions of a state.
func (g *Fsm) detachStateOut(s *State) {
	for _, t := range s.outList {
		if t.Plain() {
			g.detachPlainTo(t)
		} else {
			for _, b := range t.Conds {
				g.detachCondTo(b)
			}
		}
	}
	s.outList = nil
}

// detachStateIn redirects every in transition of a state to the error
// destination.
func (g *Fsm) detachStateIn(s *State) {
	for len(s.inPlain) > 0 {
		g.detachPlainTo(s.inPlain[0])
	}
	for len(s.inCond) > 0 {
		g.detachCondTo(s.inCond[0])
	}
	for len(s.inNfa) > 0 {
		g.detachNfaTrans(s.inNfa[0])
	}
}

// detachState removes the state from the graph entirely: finality, entry
// points, the start and error state pointers and list membership are all
// handled here.
func (g *Fsm) detachState(s *State) {
	g.detachStateOut(s)
	g.detachStateIn(s)
	for len(s.nfaOut) > 0 {
		g.detachNfaTrans(s.nfaOut[0])
	}
	g.unregisterNfaState(s)
	if s.IsFinal() {
		g.UnsetFinState(s)
	}
	for _, id := range append([]int(nil), s.entryIDs...) {
		g.UnsetEntry(id)
	}
	if g.startState == s {
		g.startState = nil
	}
	if g.errState == s {
		g.errState = nil
	}
	if s.onMisfit {
		g.misfitList.remove(s)
	} else {
		g.stateList.remove(s)
	}
	g.ctx.numStates--
}

// attachNfaTrans adds an NFA branch between two states.
func (g *Fsm) attachNfaTrans(from, to *State, order int, push, popTest, popAction ActionTable,
	popSpace *CondSpace, popKeys []CondKey) *NfaTrans {
	n := &NfaTrans{
		FromState: from, ToState: to, Order: order,
		PushTable: push, PopTest: popTest, PopAction: popAction,
		PopCondSpace: popSpace, PopCondKeys: popKeys,
	}
	from.nfaOut = append(from.nfaOut, n)
	sort.SliceStable(from.nfaOut, func(i, j int) bool {
		return from.nfaOut[i].Order < from.nfaOut[j].Order
	})
	to.inNfa = append(to.inNfa, n)
	g.registerNfaState(from)
	g.countForeignIn(from, to)
	return n
}

func (g *Fsm) detachNfaTrans(n *NfaTrans) {
	from, to := n.FromState, n.ToState
	for i, o := range from.nfaOut {
		if o == n {
			from.nfaOut = append(from.nfaOut[:i], from.nfaOut[i+1:]...)
			break
		}
	}
	for i, o := range to.inNfa {
		if o == n {
			to.inNfa = append(to.inNfa[:i], to.inNfa[i+1:]...)
			break
		}
	}
	if len(from.nfaOut) == 0 {
		g.unregisterNfaState(from)
	}
	g.discountForeignIn(from, to)
}

// FillGaps replaces every implicit gap in the state's out list with an
// explicit transition to the error destination. Emitters call it so every
// key has a rendered target.
func (g *Fsm) FillGaps(s *State) { g.fillGaps(s) }

// fillGaps replaces every implicit gap in the out list with an explicit
// transition to the error state. Used before emission.
func (g *Fsm) fillGaps(s *State) {
	ops := g.ctx.keyOps
	var gaps []struct{ lo, hi Key }

	next := ops.MinK
	nextValid := true
	for _, t := range s.outList {
		if nextValid && ops.Lt(next, t.Low) {
			hi, _ := ops.Decrement(t.Low)
			gaps = append(gaps, struct{ lo, hi Key }{next, hi})
		}
		next, nextValid = ops.Increment(t.High)
	}
	if nextValid {
		gaps = append(gaps, struct{ lo, hi Key }{next, ops.MaxK})
	}
	for _, gap := range gaps {
		g.attachNewTrans(s, nil, gap.lo, gap.hi)
	}
}

// outListCovers reports whether the out list covers the whole alphabet with
// no gaps.
func (g *Fsm) outListCovers(s *State) bool {
	ops := g.ctx.keyOps
	next := ops.MinK
	nextValid := true
	for _, t := range s.outList {
		if !nextValid || ops.Lt(next, t.Low) {
			return false
		}
		next, nextValid = ops.Increment(t.High)
	}
	return !nextValid
}

// anyErrorRange reports whether any key leads to the error destination,
// explicitly or through a gap.
func (g *Fsm) anyErrorRange(s *State) bool {
	if !g.outListCovers(s) {
		return true
	}
	for _, t := range s.outList {
		if t.Plain() {
			if t.Data.ToState == nil {
				return true
			}
		} else {
			if len(t.Conds) < t.CondFullSize() {
				return true
			}
			for _, b := range t.Conds {
				if b.ToState == nil {
					return true
				}
			}
		}
	}
	return false
}

// hasErrorTrans reports whether any state has a path to error.
func (g *Fsm) hasErrorTrans() bool {
	for s := g.stateList.head; s != nil; s = s.next {
		if g.anyErrorRange(s) {
			return true
		}
	}
	return false
}
