package fsm

import "sort"

// stateRing is the doubly linked list of states. States carry their own
// links; a state is on exactly one of the main list or the misfit list.
type stateRing struct {
	head, tail *State
	length     int
}

func (l *stateRing) append(s *State) {
	s.prev = l.tail
	s.next = nil
	if l.tail != nil {
		l.tail.next = s
	} else {
		l.head = s
	}
	l.tail = s
	l.length++
}

func (l *stateRing) remove(s *State) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.prev, s.next = nil, nil
	l.length--
}

// Fsm is the graph: an exclusive owner of its states, sharing only the
// context and the condition spaces interned there.
type Fsm struct {
	ctx *Ctx

	stateList  stateRing
	misfitList stateRing

	// nfaList tracks states holding NFA out transitions.
	nfaList []*State

	// entryPoints maps entry name ids to states.
	entryPoints map[int]*State

	startState *State

	// errState is created only for machines about to be emitted. No
	// transitions point to it.
	errState *State

	finStateSet map[*State]struct{}

	// misfitAccounting diverts states with no foreign in transitions onto
	// the misfit list so merges can discard them wholesale.
	misfitAccounting bool

	// NfaRounds records per-round depth and group counts of the bounded
	// NFA condensation when the context asks for termination checking.
	NfaRounds []NfaRound
}

// NfaRound is one round of the bounded NFA condensation.
type NfaRound struct {
	Depth  int
	Groups int
}

// NewFsm creates an empty graph bound to the context.
func NewFsm(ctx *Ctx) *Fsm {
	return &Fsm{
		ctx:         ctx,
		entryPoints: make(map[int]*State),
		finStateSet: make(map[*State]struct{}),
	}
}

// Ctx returns the owning context.
func (g *Fsm) Ctx() *Ctx { return g.ctx }

// StartState returns the machine's start state.
func (g *Fsm) StartState() *State { return g.startState }

// NumStates is the live state count, misfits included.
func (g *Fsm) NumStates() int { return g.stateList.length + g.misfitList.length }

// addState news up a state and appends it to the graph. With misfit
// accounting on the state lands on the misfit list until something
// transitions to it.
func (g *Fsm) addState() (*State, error) {
	if g.ctx.stateLimit > 0 && g.ctx.numStates >= g.ctx.stateLimit {
		return nil, &TooManyStatesError{Limit: g.ctx.stateLimit}
	}
	s := &State{id: g.ctx.nextStateID, alg: scratch{kind: scratchNone}}
	g.ctx.nextStateID++
	g.ctx.numStates++
	if g.misfitAccounting {
		g.misfitList.append(s)
		s.onMisfit = true
	} else {
		g.stateList.append(s)
	}
	return s, nil
}

func (g *Fsm) setMisfitAccounting(val bool) {
	g.misfitAccounting = val
}

// moveToMain moves a misfit onto the main list once it is reachable.
func (g *Fsm) moveToMain(s *State) {
	if s.onMisfit {
		g.misfitList.remove(s)
		s.onMisfit = false
		g.stateList.append(s)
	}
}

// moveToMisfit parks a state that lost its last foreign in transition.
func (g *Fsm) moveToMisfit(s *State) {
	if !s.onMisfit {
		g.stateList.remove(s)
		s.onMisfit = true
		g.misfitList.append(s)
	}
}

// SetFinState marks the state final.
func (g *Fsm) SetFinState(s *State) {
	s.bits |= stbFinal
	g.finStateSet[s] = struct{}{}
}

// UnsetFinState removes the state from the final set.
func (g *Fsm) UnsetFinState(s *State) {
	s.bits &^= stbFinal
	delete(g.finStateSet, s)
}

// unsetAllFinStates clears the final set.
func (g *Fsm) unsetAllFinStates() {
	for s := range g.finStateSet {
		s.bits &^= stbFinal
	}
	g.finStateSet = make(map[*State]struct{})
}

// finStates returns the final set ordered by state id; operators iterate it
// and must be deterministic.
func (g *Fsm) finStates() []*State {
	out := make([]*State, 0, len(g.finStateSet))
	for s := range g.finStateSet {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// IsFinStateSetEmpty reports whether the machine accepts nothing by final
// state.
func (g *Fsm) IsFinStateSetEmpty() bool { return len(g.finStateSet) == 0 }

// SetStartState installs the start state.
func (g *Fsm) SetStartState(s *State) { g.startState = s }

func (g *Fsm) unsetStartState() { g.startState = nil }

// SetEntry registers the state under an entry name id.
func (g *Fsm) SetEntry(id int, s *State) {
	if old, ok := g.entryPoints[id]; ok && old != s {
		old.removeEntryID(id)
	}
	g.entryPoints[id] = s
	s.addEntryID(id)
}

// ChangeEntry moves an entry id from one state to another.
func (g *Fsm) ChangeEntry(id int, to, from *State) {
	from.removeEntryID(id)
	g.entryPoints[id] = to
	to.addEntryID(id)
}

// UnsetEntry removes an entry id.
func (g *Fsm) UnsetEntry(id int) {
	if s, ok := g.entryPoints[id]; ok {
		s.removeEntryID(id)
		delete(g.entryPoints, id)
	}
}

func (g *Fsm) unsetAllEntryPoints() {
	for id, s := range g.entryPoints {
		s.removeEntryID(id)
		delete(g.entryPoints, id)
	}
}

// copyInEntryPoints brings in another machine's entry points; the other
// machine's states are assumed to be moving into this graph.
func (g *Fsm) copyInEntryPoints(other *Fsm) {
	for id, s := range other.entryPoints {
		g.entryPoints[id] = s
		s.addEntryID(id)
	}
}

// entryIDs returns the registered entry ids in increasing order.
func (g *Fsm) entryIDs() []int {
	ids := make([]int, 0, len(g.entryPoints))
	for id := range g.entryPoints {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// setFinBits ors the given graph-of-origin bits onto every final state.
func (g *Fsm) setFinBits(bits stateBits) {
	for s := range g.finStateSet {
		s.bits |= bits
	}
}

// unsetFinBits clears graph-of-origin bits on every state.
func (g *Fsm) unsetFinBits(bits stateBits) {
	for s := g.stateList.head; s != nil; s = s.next {
		s.bits &^= bits
	}
	for s := g.misfitList.head; s != nil; s = s.next {
		s.bits &^= bits
	}
}

// unsetIncompleteFinals drops finality from states that do not carry both
// graph bits. Used by intersection: a merged final must be final in both
// operands.
func (g *Fsm) unsetIncompleteFinals() {
	for _, s := range g.finStates() {
		if s.bits&stbBoth != stbBoth {
			g.UnsetFinState(s)
		}
	}
}

// unsetKilledFinals drops finality from states carrying the second graph's
// bit. Used by subtraction: a path accepted by the subtrahend is killed.
func (g *Fsm) unsetKilledFinals() {
	for _, s := range g.finStates() {
		if s.bits&stbGraph2 != 0 {
			g.UnsetFinState(s)
		}
	}
}

// registerNfaState puts a state on the NFA list once.
func (g *Fsm) registerNfaState(s *State) {
	if !s.onNfaList {
		s.onNfaList = true
		g.nfaList = append(g.nfaList, s)
	}
}

func (g *Fsm) unregisterNfaState(s *State) {
	if s.onNfaList {
		s.onNfaList = false
		for i, t := range g.nfaList {
			if t == s {
				g.nfaList = append(g.nfaList[:i], g.nfaList[i+1:]...)
				break
			}
		}
	}
}

// checkSingleCharMachine reports whether the machine matches exactly one
// key step: every start transition leads directly to a lone final state
// with no continuation. Useful when validating ranges and exported
// machines.
func (g *Fsm) checkSingleCharMachine() bool {
	if g.startState == nil || g.startState.IsFinal() {
		return false
	}
	if len(g.finStateSet) != 1 {
		return false
	}
	fin := g.finStates()[0]
	if len(g.startState.outList) == 0 || len(fin.outList) != 0 {
		return false
	}
	for _, t := range g.startState.outList {
		if !t.Plain() || t.Data.ToState != fin {
			return false
		}
	}
	return g.stateList.length == 2
}

// setStateNumbers assigns sequential numbers starting at base, in state list
// order. Enters the numbering phase of the scratch slot.
func (g *Fsm) setStateNumbers(base int) {
	for s := g.stateList.head; s != nil; s = s.next {
		s.alg = scratch{kind: scratchStateNum, stateNum: base}
		base++
	}
}

// stealStates moves every state of other into this graph. The other machine
// is left empty and must be discarded.
func (g *Fsm) stealStates(other *Fsm) {
	for s := other.stateList.head; s != nil; {
		next := s.next
		other.stateList.remove(s)
		if g.misfitAccounting && s.foreignInTrans == 0 {
			s.onMisfit = true
			g.misfitList.append(s)
		} else {
			g.stateList.append(s)
		}
		s = next
	}
	for s := other.misfitList.head; s != nil; {
		next := s.next
		other.misfitList.remove(s)
		s.onMisfit = false
		if g.misfitAccounting {
			s.onMisfit = true
			g.misfitList.append(s)
		} else {
			g.stateList.append(s)
		}
		s = next
	}
	for _, s := range other.nfaList {
		s.onNfaList = false
		g.registerNfaState(s)
	}
	other.nfaList = nil
	for s := range other.finStateSet {
		g.finStateSet[s] = struct{}{}
	}
	other.finStateSet = make(map[*State]struct{})
}

// dupFsm deep-copies the graph. Runs in the state-map phase of the scratch
// slot.
func (g *Fsm) dupFsm() (*Fsm, error) {
	out := NewFsm(g.ctx)

	// First pass: duplicate states and their data.
	for s := g.stateList.head; s != nil; s = s.next {
		d, err := out.addState()
		if err != nil {
			return nil, err
		}
		s.alg = scratch{kind: scratchStateMap, stateMap: d}
		d.bits = s.bits &^ (stbMarked | stbOnList)
		d.outPriorTable = s.outPriorTable.clone()
		d.toStateActionTable = s.toStateActionTable.clone()
		d.fromStateActionTable = s.fromStateActionTable.clone()
		d.outActionTable = s.outActionTable.clone()
		d.errActionTable = s.errActionTable.clone()
		d.eofActionTable = s.eofActionTable.clone()
		d.outCondSpace = s.outCondSpace
		if s.outCondVals != nil {
			d.outCondVals = s.outCondVals.clone()
		}
		d.lmItemSet = append([]*LmPart(nil), s.lmItemSet...)
		d.epsilonTrans = append([]int(nil), s.epsilonTrans...)
		if s.IsFinal() {
			out.SetFinState(d)
		}
	}

	// Second pass: duplicate transitions through the state map.
	for s := g.stateList.head; s != nil; s = s.next {
		d := s.alg.stateMap
		for _, t := range s.outList {
			if t.Plain() {
				nt := out.attachNewTrans(d, mapState(t.Data.ToState), t.Low, t.High)
				nt.Data.copyTables(t.Data)
			} else {
				nt := out.attachNewCondTrans(d, t.Low, t.High, t.CondSpace)
				for _, b := range t.Conds {
					nb := out.attachNewCond(nt, d, mapState(b.ToState), b.Key)
					nb.copyTables(&b.TransData)
				}
			}
		}
		for _, n := range s.nfaOut {
			out.attachNfaTrans(d, mapState(n.ToState), n.Order, n.PushTable.clone(), n.PopTest.clone(), n.PopAction.clone(), n.PopCondSpace, append([]CondKey(nil), n.PopCondKeys...))
		}
	}

	if g.startState != nil {
		out.startState = g.startState.alg.stateMap
	}
	for id, s := range g.entryPoints {
		out.SetEntry(id, s.alg.stateMap)
	}
	return out, nil
}

func mapState(s *State) *State {
	if s == nil {
		return nil
	}
	if s.alg.kind != scratchStateMap {
		structuralf("state map read outside duplication phase")
	}
	return s.alg.stateMap
}
