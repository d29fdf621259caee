package fsm

// Machine operators. Every operator merges action tables by ordering,
// unions priority tables, expands differing condition spaces, and runs the
// misfit fill-in; minimization follows per the context's level.

// become replaces this graph's contents with another graph over the same
// context. The other graph must be discarded afterwards.
func (g *Fsm) become(o *Fsm) {
	sameCtx(g, o)
	g.stateList = o.stateList
	g.misfitList = o.misfitList
	g.nfaList = o.nfaList
	g.entryPoints = o.entryPoints
	g.startState = o.startState
	g.errState = o.errState
	g.finStateSet = o.finStateSet
	g.misfitAccounting = o.misfitAccounting
}

// isStartStateIsolated reports whether nothing transitions into the start
// state.
func (g *Fsm) isStartStateIsolated() bool {
	return g.startState.foreignInTrans == 0
}

// dupStartState makes a copy of the start state sharing its targets and
// state data. The copy has no entry points and nothing transitions to it.
func (g *Fsm) dupStartState() (*State, error) {
	src := g.startState
	dup, err := g.addState()
	if err != nil {
		return nil, err
	}
	for _, t := range src.outList {
		if t.Plain() {
			nt := g.attachNewTrans(dup, t.Data.ToState, t.Low, t.High)
			nt.Data.copyTables(t.Data)
		} else {
			nt := g.attachNewCondTrans(dup, t.Low, t.High, t.CondSpace)
			for _, b := range t.Conds {
				nb := g.attachNewCond(nt, dup, b.ToState, b.Key)
				nb.copyTables(&b.TransData)
			}
		}
	}
	for _, n := range src.nfaOut {
		g.attachNfaTrans(dup, n.ToState, n.Order,
			n.PushTable.clone(), n.PopTest.clone(), n.PopAction.clone(),
			n.PopCondSpace, append([]CondKey(nil), n.PopCondKeys...))
	}
	if src.IsFinal() {
		g.SetFinState(dup)
	}
	dup.toStateActionTable = src.toStateActionTable.clone()
	dup.fromStateActionTable = src.fromStateActionTable.clone()
	dup.outActionTable = src.outActionTable.clone()
	dup.eofActionTable = src.eofActionTable.clone()
	dup.errActionTable = src.errActionTable.clone()
	dup.outPriorTable = src.outPriorTable.clone()
	dup.outCondSpace = src.outCondSpace
	if src.outCondVals != nil {
		dup.outCondVals = src.outCondVals.clone()
	}
	dup.lmItemSet = append([]*LmPart(nil), src.lmItemSet...)
	dup.epsilonTrans = append([]int(nil), src.epsilonTrans...)
	return dup, nil
}

// isolateStartState gives the machine a start state with no entry points
// and no in transitions, without changing the accepted language.
func (g *Fsm) isolateStartState() error {
	if g.isStartStateIsolated() && len(g.startState.entryIDs) == 0 {
		return nil
	}
	dup, err := g.dupStartState()
	if err != nil {
		return err
	}
	g.SetStartState(dup)
	return nil
}

// StarOp grafts the start state's transitions onto every final state and
// makes the start final: zero or more repetitions.
func (g *Fsm) StarOp() error {
	if err := g.isolateStartState(); err != nil {
		return err
	}
	md := newMergeData()
	g.setMisfitAccounting(true)
	for _, f := range g.finStates() {
		if err := g.mergeStatesLeaving(md, f, g.startState); err != nil {
			g.setMisfitAccounting(false)
			return err
		}
	}
	if err := g.fillInStates(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	g.removeMisfits()
	g.setMisfitAccounting(false)
	g.SetFinState(g.startState)
	return g.finishOp("star", true)
}

// RepeatOp unrolls the machine exactly times times. Zero repetitions yield
// the lambda machine.
func (g *Fsm) RepeatOp(times int) error {
	if times < 0 {
		return &RepetitionError{Times: times}
	}
	if times == 0 {
		l, err := LambdaFsm(g.ctx)
		if err != nil {
			return err
		}
		g.become(l)
		return nil
	}
	origin, err := g.dupFsm()
	if err != nil {
		return err
	}
	for i := 1; i < times; i++ {
		copyFsm, err := origin.dupFsm()
		if err != nil {
			return err
		}
		if err := g.doConcat(copyFsm, nil, false); err != nil {
			return err
		}
	}
	return g.finishOp("repeat", false)
}

// OptionalRepeatOp unrolls the machine up to times times, any shorter
// repetition accepted as well.
func (g *Fsm) OptionalRepeatOp(times int) error {
	if times < 0 {
		return &RepetitionError{Times: times}
	}
	if times == 0 {
		l, err := LambdaFsm(g.ctx)
		if err != nil {
			return err
		}
		g.become(l)
		return nil
	}
	origin, err := g.dupFsm()
	if err != nil {
		return err
	}
	// Make the first unit optional by keeping the start final.
	g.SetFinState(g.startState)
	for i := 1; i < times; i++ {
		copyFsm, err := origin.dupFsm()
		if err != nil {
			return err
		}
		if err := g.doConcat(copyFsm, nil, true); err != nil {
			return err
		}
	}
	return g.finishOp("optional-repeat", false)
}

// ConcatOp appends the other machine: every final state of this machine is
// stitched to the other's start.
func (g *Fsm) ConcatOp(other *Fsm) error {
	if err := g.doConcat(other, nil, false); err != nil {
		return err
	}
	return g.finishOp("concat", false)
}

// doConcat is the concatenation worker. fromStates overrides the stitch
// points (default: the final set); optional preserves this machine's
// finality, for A B? style constructs.
func (g *Fsm) doConcat(other *Fsm, fromStates []*State, optional bool) error {
	sameCtx(g, other)
	if fromStates == nil {
		fromStates = g.finStates()
	}
	otherStart := other.startState
	otherStartFinal := otherStart.IsFinal()

	md := newMergeData()
	g.setMisfitAccounting(true)
	g.stealStates(other)
	g.copyInEntryPoints(other)

	for _, f := range fromStates {
		if !optional && !otherStartFinal {
			g.UnsetFinState(f)
		}
		if err := g.mergeStatesLeaving(md, f, otherStart); err != nil {
			g.setMisfitAccounting(false)
			return err
		}
	}
	if err := g.fillInStates(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	g.removeMisfits()
	g.setMisfitAccounting(false)
	return nil
}

// UnionOp folds the other machine in: the result accepts a word when either
// operand did.
func (g *Fsm) UnionOp(other *Fsm) error {
	sameCtx(g, other)
	if err := g.doOr(other); err != nil {
		return err
	}
	return g.finishOp("union", true)
}

// IntersectOp keeps only words both operands accept.
func (g *Fsm) IntersectOp(other *Fsm) error {
	sameCtx(g, other)
	g.setFinBits(stbGraph1)
	other.setFinBits(stbGraph2)
	if err := g.doOr(other); err != nil {
		return err
	}
	g.unsetIncompleteFinals()
	g.removeDeadEndStates()
	g.unsetFinBits(stbBoth)
	return g.finishOp("intersect", true)
}

// SubtractOp removes the other machine's words from this machine.
func (g *Fsm) SubtractOp(other *Fsm) error {
	sameCtx(g, other)
	other.setFinBits(stbGraph2)
	if err := g.doOr(other); err != nil {
		return err
	}
	g.unsetKilledFinals()
	g.removeDeadEndStates()
	g.unsetFinBits(stbBoth)
	return g.finishOp("subtract", true)
}

// doOr is the union worker: import the other machine's states and replace
// the start with the state representing both starts, then determinize.
func (g *Fsm) doOr(other *Fsm) error {
	start1 := g.startState
	start2 := other.startState

	md := newMergeData()
	g.setMisfitAccounting(true)
	g.stealStates(other)
	g.copyInEntryPoints(other)

	newStart, err := g.addState()
	if err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	g.seedDict(md, newStart, []*State{start1, start2})
	if err := g.fillInStates(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	g.SetStartState(newStart)
	// The new start is reachable by virtue of being the start state.
	g.moveToMain(newStart)
	g.removeMisfits()
	g.setMisfitAccounting(false)
	return nil
}

// EpsilonTrans records a pending epsilon transition from every final state
// to the entry point named id, resolved by a later join.
func (g *Fsm) EpsilonTrans(id int) {
	for _, f := range g.finStates() {
		f.epsilonTrans = append(f.epsilonTrans, id)
	}
}

// EpsilonOp resolves pending epsilon transitions against this machine's
// entry points, re-determinizing afterwards.
func (g *Fsm) EpsilonOp() error {
	md := newMergeData()
	g.setMisfitAccounting(true)
	if err := g.resolveEpsilonTrans(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	if err := g.fillInStates(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	g.removeMisfits()
	g.setMisfitAccounting(false)
	return g.finishOp("epsilon", true)
}

func (g *Fsm) resolveEpsilonTrans(md *mergeData) error {
	// Snapshot the states carrying epsilon transitions before any merging
	// pollutes the lists.
	var pending []*State
	for s := g.stateList.head; s != nil; s = s.next {
		if len(s.epsilonTrans) > 0 {
			pending = append(pending, s)
		}
	}
	for _, s := range pending {
		for _, t := range g.epsilonClosure(s) {
			if err := g.mergeStates(md, s, t); err != nil {
				return err
			}
		}
	}
	for s := g.stateList.head; s != nil; s = s.next {
		s.epsilonTrans = nil
	}
	for s := g.misfitList.head; s != nil; s = s.next {
		s.epsilonTrans = nil
	}
	return nil
}

// epsilonClosure walks entry-point targets transitively.
func (g *Fsm) epsilonClosure(s *State) []*State {
	var out []*State
	seen := map[*State]bool{s: true}
	stack := []*State{s}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, id := range t.epsilonTrans {
			u := g.entryPoints[id]
			if u != nil && !seen[u] {
				seen[u] = true
				out = append(out, u)
				stack = append(stack, u)
			}
		}
	}
	return out
}

// JoinOp composes this machine with the others into a multi-entry machine:
// epsilon transitions are resolved against the union of entry points, the
// machine starts at startId and accepts at finalId's entry state.
func (g *Fsm) JoinOp(startId, finalId int, others []*Fsm) error {
	for _, o := range others {
		sameCtx(g, o)
	}
	md := newMergeData()
	g.setMisfitAccounting(true)
	for _, o := range others {
		g.stealStates(o)
		g.copyInEntryPoints(o)
	}
	if err := g.resolveEpsilonTrans(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	if err := g.fillInStates(md); err != nil {
		g.setMisfitAccounting(false)
		return err
	}
	if start, ok := g.entryPoints[startId]; ok {
		g.SetStartState(start)
	}
	// Finality flows out of the epsilon merges; the named final entry is
	// final as well so the join can be re-entered at it.
	if fin, ok := g.entryPoints[finalId]; ok {
		g.SetFinState(fin)
	}
	g.removeMisfits()
	g.setMisfitAccounting(false)
	return g.finishOp("join", true)
}

// GlobOp imports the other machines' states without connecting anything.
func (g *Fsm) GlobOp(others []*Fsm) error {
	for _, o := range others {
		sameCtx(g, o)
		g.stealStates(o)
		g.copyInEntryPoints(o)
	}
	return nil
}

// DeterministicEntry re-determinizes around the entry points, resolving any
// pending epsilon transitions.
func (g *Fsm) DeterministicEntry() error {
	return g.EpsilonOp()
}

// NfaUnionOp deliberately leaves the graph nondeterministic: a new start
// state branches to every operand's start by ordered NFA transitions. When
// depth is positive the bounded condensation collapses that many levels;
// the context's termination check records per-round accounting.
func (g *Fsm) NfaUnionOp(others []*Fsm, depth int) error {
	starts := []*State{g.startState}
	for _, o := range others {
		sameCtx(g, o)
		oStart := o.startState
		g.stealStates(o)
		g.copyInEntryPoints(o)
		starts = append(starts, oStart)
	}
	newStart, err := g.addState()
	if err != nil {
		return err
	}
	for i, st := range starts {
		g.attachNfaTrans(newStart, st, i, nil, nil, nil, nil, nil)
	}
	g.SetStartState(newStart)

	for round := 0; round < depth; round++ {
		if len(g.nfaList) == 0 {
			break
		}
		if g.ctx.nfaTermCheck {
			g.NfaRounds = append(g.NfaRounds, NfaRound{Depth: round, Groups: len(g.nfaList)})
		}
		md := newMergeData()
		g.setMisfitAccounting(true)
		for _, s := range append([]*State(nil), g.nfaList...) {
			for _, n := range append([]*NfaTrans(nil), s.nfaOut...) {
				target := n.ToState
				g.detachNfaTrans(n)
				if target != s {
					if err := g.mergeStates(md, s, target); err != nil {
						g.setMisfitAccounting(false)
						return err
					}
				}
			}
		}
		if err := g.fillInStates(md); err != nil {
			g.setMisfitAccounting(false)
			return err
		}
		g.removeMisfits()
		g.setMisfitAccounting(false)
	}
	return g.finishOp("nfa-union", false)
}

// NfaRepeat builds bounded repetition with explicit runtime stacks instead
// of graph shape: push actions enter the loop, pop tests guard the exits.
// The min and max guards land on the exit and loop branches respectively.
func (g *Fsm) NfaRepeat(init, min, max, push, pop *Action) error {
	return g.nfaRepeatWorker(init, min, max, push, pop, false)
}

// NfaRepeatLegacy is the older encoding: both guards are embedded on both
// the loop and the exit branches.
func (g *Fsm) NfaRepeatLegacy(init, min, max, push, pop *Action) error {
	return g.nfaRepeatWorker(init, min, max, push, pop, true)
}

func (g *Fsm) nfaRepeatWorker(init, min, max, push, pop *Action, guardBoth bool) error {
	if err := g.isolateStartState(); err != nil {
		return err
	}
	oldStart := g.startState

	newStart, err := g.addState()
	if err != nil {
		return err
	}
	exit, err := g.addState()
	if err != nil {
		return err
	}

	var initTable ActionTable
	initTable.SetAction(0, init)
	initTable.SetAction(1, push)
	g.attachNfaTrans(newStart, oldStart, 0, initTable, nil, nil, nil, nil)
	init.NumNfaPopRefs++
	push.NumNfaPopRefs++

	for _, f := range g.finStates() {
		var loopPush, loopTest ActionTable
		loopPush.SetAction(0, push)
		loopTest.SetAction(0, max)
		if guardBoth {
			loopTest.SetAction(1, min)
		}
		g.attachNfaTrans(f, oldStart, 0, loopPush, loopTest, nil, nil, nil)

		var exitTest, exitPop ActionTable
		exitTest.SetAction(0, min)
		if guardBoth {
			exitTest.SetAction(1, max)
		}
		exitPop.SetAction(0, pop)
		g.attachNfaTrans(f, exit, 1, nil, exitTest, exitPop, nil, nil)

		max.NumNfaPopRefs++
		min.NumNfaPopRefs++
		pop.NumNfaPopRefs++
		g.UnsetFinState(f)
	}

	g.SetStartState(newStart)
	g.SetFinState(exit)
	return nil
}

// shiftStartActionOrder renumbers the action orderings on the start state's
// out transitions to begin at fromOrder, returning the next free order.
// Useful before a kleene star.
func (g *Fsm) shiftStartActionOrder(fromOrder int) int {
	order := fromOrder
	for _, t := range g.startState.outList {
		if t.Plain() {
			for i := range t.Data.ActionTable {
				t.Data.ActionTable[i].Ordering = order
				order++
			}
		} else {
			for _, b := range t.Conds {
				for i := range b.ActionTable {
					b.ActionTable[i].Ordering = order
					order++
				}
			}
		}
	}
	return order
}

// clearAllPriorities strips priority data everywhere so it cannot affect
// final minimization.
func (g *Fsm) clearAllPriorities() {
	for s := g.stateList.head; s != nil; s = s.next {
		s.outPriorTable = nil
		s.guardedInTable = nil
		for _, t := range s.outList {
			if t.Plain() {
				t.Data.PriorTable = nil
			} else {
				for _, b := range t.Conds {
					b.PriorTable = nil
				}
			}
		}
	}
}

// nullActionKeys zeroes every action ordering.
func (g *Fsm) nullActionKeys() {
	for s := g.stateList.head; s != nil; s = s.next {
		zeroTable := func(t ActionTable) {
			for i := range t {
				t[i].Ordering = 0
			}
		}
		zeroTable(s.toStateActionTable)
		zeroTable(s.fromStateActionTable)
		zeroTable(s.outActionTable)
		zeroTable(s.eofActionTable)
		for _, t := range s.outList {
			if t.Plain() {
				zeroTable(t.Data.ActionTable)
			} else {
				for _, b := range t.Conds {
					zeroTable(b.ActionTable)
				}
			}
		}
	}
}

// finishOp logs statistics and applies the context's minimization policy.
// heavy marks the operators that tend to blow up the state count.
func (g *Fsm) finishOp(name string, heavy bool) error {
	g.ctx.stats("op %s: states=%d finals=%d", name, g.NumStates(), len(g.finStateSet))
	switch g.ctx.minimizeLevel {
	case MinimizeEvery:
		g.Minimize()
	case MinimizeMost:
		if heavy {
			g.Minimize()
		}
	}
	return nil
}

// Finalize prepares the machine for emission: strip unreachable states,
// minimize per the context, and coalesce adjacent equal transitions.
func (g *Fsm) Finalize() {
	g.removeUnreachableStates()
	if g.ctx.minimizeLevel >= MinimizeEnd {
		g.Minimize()
	}
	g.compressTransitions()
}
