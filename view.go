package fsm

// The diagram emission view: a read-only, stably numbered projection of the
// graph for external serializers. Nothing here mutates the machine beyond
// assigning state numbers.

// GraphView is the root of the projection. States appear in list order and
// are referred to by index.
type GraphView struct {
	States []StateView

	// Start is the index of the start state, -1 when absent.
	Start int

	// Entries maps entry name ids to state indexes.
	Entries map[int]int

	// KeyOps is the alphabet the ranges are expressed over.
	KeyOps *KeyOps
}

// StateView is one state of the projection.
type StateView struct {
	Num   int
	Final bool

	EofActions       ActionTable
	FromStateActions ActionTable
	ToStateActions   ActionTable

	OutCondSpace *CondSpace
	OutCondVals  []CondKey

	Trans []TransView
	Nfa   []NfaView
}

// TransView is one outgoing range. Plain is set for single-destination
// transitions; Conds carries the (condValue, actions, dest) triples
// otherwise.
type TransView struct {
	Low, High Key
	CondSpace *CondSpace
	Plain     *TransArrowView
	Conds     []CondArrowView
}

// TransArrowView is the destination and action table of a plain transition.
// Dest is a state index, -1 for the error destination.
type TransArrowView struct {
	Actions ActionTable
	Dest    int
}

// CondArrowView is one conditional branch.
type CondArrowView struct {
	Key     CondKey
	Actions ActionTable
	Dest    int
}

// NfaView is one NFA branch out of a state.
type NfaView struct {
	Order     int
	Dest      int
	PopTest   ActionTable
	PopAction ActionTable

	PopCondSpace *CondSpace
	PopCondKeys  []CondKey
}

// View numbers the states and projects the machine for emission.
func (g *Fsm) View() *GraphView {
	g.setStateNumbers(0)

	v := &GraphView{
		Start:   -1,
		Entries: make(map[int]int),
		KeyOps:  g.ctx.keyOps,
	}

	destNum := func(s *State) int {
		if s == nil {
			return -1
		}
		return stateNum(s)
	}

	for s := g.stateList.head; s != nil; s = s.next {
		sv := StateView{
			Num:              stateNum(s),
			Final:            s.IsFinal(),
			EofActions:       s.eofActionTable,
			FromStateActions: s.fromStateActionTable,
			ToStateActions:   s.toStateActionTable,
			OutCondSpace:     s.outCondSpace,
		}
		if s.outCondVals != nil {
			sv.OutCondVals = s.outCondVals.keys()
		}
		for _, t := range s.outList {
			tv := TransView{Low: t.Low, High: t.High, CondSpace: t.CondSpace}
			if t.Plain() {
				tv.Plain = &TransArrowView{
					Actions: t.Data.ActionTable,
					Dest:    destNum(t.Data.ToState),
				}
			} else {
				for _, b := range t.Conds {
					tv.Conds = append(tv.Conds, CondArrowView{
						Key:     b.Key,
						Actions: b.ActionTable,
						Dest:    destNum(b.ToState),
					})
				}
			}
			sv.Trans = append(sv.Trans, tv)
		}
		for _, n := range s.nfaOut {
			sv.Nfa = append(sv.Nfa, NfaView{
				Order:        n.Order,
				Dest:         destNum(n.ToState),
				PopTest:      n.PopTest,
				PopAction:    n.PopAction,
				PopCondSpace: n.PopCondSpace,
				PopCondKeys:  n.PopCondKeys,
			})
		}
		v.States = append(v.States, sv)
	}

	if g.startState != nil {
		v.Start = stateNum(g.startState)
	}
	for _, id := range g.entryIDs() {
		v.Entries[id] = stateNum(g.entryPoints[id])
	}
	return v
}
