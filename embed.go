package fsm

// Embedding of priorities, actions and conditions at the positions the
// surface language knows: start, all, finish (into finals), leave (pending
// out), and the state position classes for EOF and state action tables.

func setTransPrior(t *Trans, ordering int, desc *PriorDesc) {
	if t.Plain() {
		t.Data.PriorTable.SetPrior(ordering, desc)
	} else {
		for _, b := range t.Conds {
			b.PriorTable.SetPrior(ordering, desc)
		}
	}
}

// StartFsmPrior sets a priority on the transitions leaving the start state.
func (g *Fsm) StartFsmPrior(ordering int, desc *PriorDesc) {
	for _, t := range g.startState.outList {
		setTransPrior(t, ordering, desc)
	}
}

// AllTransPrior sets a priority on every transition in the machine.
func (g *Fsm) AllTransPrior(ordering int, desc *PriorDesc) {
	for s := g.stateList.head; s != nil; s = s.next {
		for _, t := range s.outList {
			setTransPrior(t, ordering, desc)
		}
	}
}

// FinishFsmPrior sets a priority on the transitions into final states.
func (g *Fsm) FinishFsmPrior(ordering int, desc *PriorDesc) {
	for _, f := range g.finStates() {
		for _, t := range f.inPlain {
			t.Data.PriorTable.SetPrior(ordering, desc)
		}
		for _, b := range f.inCond {
			b.PriorTable.SetPrior(ordering, desc)
		}
	}
}

// LeaveFsmPrior sets a pending priority transferred onto transitions that
// later leave via a final state.
func (g *Fsm) LeaveFsmPrior(ordering int, desc *PriorDesc) {
	for _, f := range g.finStates() {
		f.outPriorTable.SetPrior(ordering, desc)
	}
}

func setTransAction(t *Trans, ordering int, action *Action) {
	if t.Plain() {
		t.Data.ActionTable.SetAction(ordering, action)
		action.NumTransRefs++
	} else {
		for _, b := range t.Conds {
			b.ActionTable.SetAction(ordering, action)
			action.NumTransRefs++
		}
	}
}

// StartFsmAction embeds an action on the transitions leaving the start
// state.
func (g *Fsm) StartFsmAction(ordering int, action *Action) {
	for _, t := range g.startState.outList {
		setTransAction(t, ordering, action)
	}
}

// AllTransAction embeds an action on every transition.
func (g *Fsm) AllTransAction(ordering int, action *Action) {
	for s := g.stateList.head; s != nil; s = s.next {
		for _, t := range s.outList {
			setTransAction(t, ordering, action)
		}
	}
}

// FinishFsmAction embeds an action on the transitions into final states.
func (g *Fsm) FinishFsmAction(ordering int, action *Action) {
	for _, f := range g.finStates() {
		for _, t := range f.inPlain {
			t.Data.ActionTable.SetAction(ordering, action)
			action.NumTransRefs++
		}
		for _, b := range f.inCond {
			b.ActionTable.SetAction(ordering, action)
			action.NumTransRefs++
		}
	}
}

// LeaveFsmAction embeds a pending action transferred onto transitions that
// later leave via a final state.
func (g *Fsm) LeaveFsmAction(ordering int, action *Action) {
	for _, f := range g.finStates() {
		f.outActionTable.SetAction(ordering, action)
	}
}

// LongMatchAction embeds a longest-match part on the transitions into final
// states and records it in their item sets.
func (g *Fsm) LongMatchAction(ordering int, part *LmPart) {
	for _, f := range g.finStates() {
		for _, t := range f.inPlain {
			t.Data.LmActionTable.SetAction(ordering, part)
		}
		for _, b := range f.inCond {
			b.LmActionTable.SetAction(ordering, part)
		}
		f.addLmItem(part)
	}
}

// EmbedCondition rewrites the state's out transitions to test the given
// condition set, keeping only the listed values.
func (g *Fsm) EmbedCondition(state *State, set CondSet, vals []CondKey) error {
	space := g.ctx.AddCondSpace(set)
	valSet := newCondValSet(space)
	for _, v := range vals {
		valSet.set(v)
	}
	for _, c := range set {
		c.NumCondRefs++
	}
	return g.embedOutConds(state, space, valSet)
}

func senseVals(sense bool) []CondKey {
	if sense {
		return []CondKey{1}
	}
	return []CondKey{0}
}

// StartFsmCondition guards the transitions leaving the start state on the
// condition action.
func (g *Fsm) StartFsmCondition(condAction *Action, sense bool) error {
	return g.EmbedCondition(g.startState, NewCondSet(condAction), senseVals(sense))
}

// AllTransCondition guards every transition on the condition action.
func (g *Fsm) AllTransCondition(condAction *Action, sense bool) error {
	set := NewCondSet(condAction)
	vals := senseVals(sense)
	var states []*State
	for s := g.stateList.head; s != nil; s = s.next {
		states = append(states, s)
	}
	for _, s := range states {
		if err := g.EmbedCondition(s, set, vals); err != nil {
			return err
		}
	}
	return nil
}

// LeaveFsmCondition records a pending condition on the final states,
// injected into transitions that later leave via them.
func (g *Fsm) LeaveFsmCondition(condAction *Action, sense bool) {
	space := g.ctx.AddCondSpace(NewCondSet(condAction))
	condAction.NumCondRefs++
	for _, f := range g.finStates() {
		if f.outCondSpace == nil {
			f.outCondSpace = space
			f.outCondVals = newCondValSet(space)
			f.outCondVals.set(senseVals(sense)[0])
			continue
		}
		merged := g.ctx.AddCondSpace(f.outCondSpace.CondSet.Union(space.CondSet))
		expanded := f.outCondVals.expand(f.outCondSpace, merged)
		pos := merged.CondSet.Pos(condAction)
		kept := newCondValSet(merged)
		for _, v := range expanded.keys() {
			bit := v&(1<<pos) != 0
			if bit == sense {
				kept.set(v)
			}
		}
		f.outCondSpace = merged
		f.outCondVals = kept
	}
}

// State position classes for the table setters.
type statePos int

const (
	posStart statePos = iota
	posAll
	posFinal
	posNotStart
	posNotFinal
	posMiddle
)

func (g *Fsm) statesAt(pos statePos) []*State {
	var out []*State
	for s := g.stateList.head; s != nil; s = s.next {
		isStart := s == g.startState
		isFinal := s.IsFinal()
		switch pos {
		case posStart:
			if isStart {
				out = append(out, s)
			}
		case posAll:
			out = append(out, s)
		case posFinal:
			if isFinal {
				out = append(out, s)
			}
		case posNotStart:
			if !isStart {
				out = append(out, s)
			}
		case posNotFinal:
			if !isFinal {
				out = append(out, s)
			}
		case posMiddle:
			if !isStart && !isFinal {
				out = append(out, s)
			}
		}
	}
	return out
}

func (g *Fsm) setEOFAction(pos statePos, ordering int, action *Action) {
	for _, s := range g.statesAt(pos) {
		s.eofActionTable.SetAction(ordering, action)
		action.NumEofRefs++
	}
}

// EOF action setters by position class.
func (g *Fsm) StartEOFAction(ordering int, action *Action)    { g.setEOFAction(posStart, ordering, action) }
func (g *Fsm) AllEOFAction(ordering int, action *Action)      { g.setEOFAction(posAll, ordering, action) }
func (g *Fsm) FinalEOFAction(ordering int, action *Action)    { g.setEOFAction(posFinal, ordering, action) }
func (g *Fsm) NotStartEOFAction(ordering int, action *Action) { g.setEOFAction(posNotStart, ordering, action) }
func (g *Fsm) NotFinalEOFAction(ordering int, action *Action) { g.setEOFAction(posNotFinal, ordering, action) }
func (g *Fsm) MiddleEOFAction(ordering int, action *Action)   { g.setEOFAction(posMiddle, ordering, action) }

func (g *Fsm) setToStateAction(pos statePos, ordering int, action *Action) {
	for _, s := range g.statesAt(pos) {
		s.toStateActionTable.SetAction(ordering, action)
		action.NumToStateRefs++
	}
}

// To-state action setters by position class.
func (g *Fsm) StartToStateAction(ordering int, action *Action) {
	g.setToStateAction(posStart, ordering, action)
}
func (g *Fsm) AllToStateAction(ordering int, action *Action) {
	g.setToStateAction(posAll, ordering, action)
}
func (g *Fsm) FinalToStateAction(ordering int, action *Action) {
	g.setToStateAction(posFinal, ordering, action)
}
func (g *Fsm) NotStartToStateAction(ordering int, action *Action) {
	g.setToStateAction(posNotStart, ordering, action)
}
func (g *Fsm) NotFinalToStateAction(ordering int, action *Action) {
	g.setToStateAction(posNotFinal, ordering, action)
}
func (g *Fsm) MiddleToStateAction(ordering int, action *Action) {
	g.setToStateAction(posMiddle, ordering, action)
}

func (g *Fsm) setFromStateAction(pos statePos, ordering int, action *Action) {
	for _, s := range g.statesAt(pos) {
		s.fromStateActionTable.SetAction(ordering, action)
		action.NumFromStateRefs++
	}
}

// From-state action setters by position class.
func (g *Fsm) StartFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posStart, ordering, action)
}
func (g *Fsm) AllFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posAll, ordering, action)
}
func (g *Fsm) FinalFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posFinal, ordering, action)
}
func (g *Fsm) NotStartFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posNotStart, ordering, action)
}
func (g *Fsm) NotFinalFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posNotFinal, ordering, action)
}
func (g *Fsm) MiddleFromStateAction(ordering int, action *Action) {
	g.setFromStateAction(posMiddle, ordering, action)
}

func (g *Fsm) setErrorAction(pos statePos, ordering int, action *Action, transferPoint int) {
	for _, s := range g.statesAt(pos) {
		s.errActionTable.SetAction(ordering, action, transferPoint)
	}
}

// Error action setters by position class. The transfer point names where
// the action migrates when the machine is finalized.
func (g *Fsm) StartErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posStart, ordering, action, transferPoint)
}
func (g *Fsm) AllErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posAll, ordering, action, transferPoint)
}
func (g *Fsm) FinalErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posFinal, ordering, action, transferPoint)
}
func (g *Fsm) NotStartErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posNotStart, ordering, action, transferPoint)
}
func (g *Fsm) NotFinalErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posNotFinal, ordering, action, transferPoint)
}
func (g *Fsm) MiddleErrorAction(ordering int, action *Action, transferPoint int) {
	g.setErrorAction(posMiddle, ordering, action, transferPoint)
}

// transferErrorActions moves a state's error actions matching the transfer
// point onto its EOF table and drops them from the error table.
func (g *Fsm) transferErrorActions(s *State, transferPoint int) {
	kept := s.errActionTable[:0]
	for _, el := range s.errActionTable {
		if el.TransferPoint == transferPoint {
			s.eofActionTable.SetAction(el.Ordering, el.Action)
			el.Action.NumEofRefs++
		} else {
			kept = append(kept, el)
		}
	}
	s.errActionTable = kept
}
