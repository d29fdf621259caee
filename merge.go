package fsm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Subset construction. A destination state stands for a set of source
// states; the dictionary interns those sets so every distinct set maps to
// exactly one state. The fill queue holds created destinations whose out
// transitions have not been filled in yet.

// transDensityLimit bounds the full size of a merged condition space.
const transDensityLimit = 1 << 16

type stateDictEl struct {
	set  []*State
	targ *State
}

type mergeData struct {
	stateDict map[string]*stateDictEl
	fill      []*State

	// dictEls tracks every interned element so target pointers can be
	// cleared when the operation finishes.
	dictEls []*stateDictEl

	// condCosts counts duplications of cost-marked actions.
	condCosts map[int]int
}

func newMergeData() *mergeData {
	return &mergeData{
		stateDict: make(map[string]*stateDictEl),
		condCosts: make(map[int]int),
	}
}

// stateSetKey builds the canonical dictionary key for a sorted state set.
// The set is encoded as a bitset over context state ids; sets with equal
// membership produce identical words.
func stateSetKey(set []*State) string {
	top := uint(set[len(set)-1].id)
	bs := bitset.New(top + 1)
	for _, s := range set {
		bs.Set(uint(s.id))
	}
	var b strings.Builder
	for _, w := range bs.Bytes() {
		b.WriteString(strconv.FormatUint(w, 16))
		b.WriteByte('.')
	}
	return b.String()
}

// representedSet returns the source set a state stands for: its dictionary
// set when it has one, else itself.
func representedSet(s *State) []*State {
	if s.stateDictEl != nil {
		return s.stateDictEl.set
	}
	return []*State{s}
}

func unionStateSets(a, b []*State) []*State {
	out := make([]*State, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].id < b[j].id:
			out = append(out, a[i])
			i++
		case b[j].id < a[i].id:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// dictTarget finds or creates the state representing the set. New states go
// onto the fill queue.
func (g *Fsm) dictTarget(md *mergeData, set []*State) (*State, error) {
	if len(set) == 1 {
		return set[0], nil
	}
	key := stateSetKey(set)
	if el, ok := md.stateDict[key]; ok {
		return el.targ, nil
	}
	targ, err := g.addState()
	if err != nil {
		return nil, err
	}
	el := &stateDictEl{set: set, targ: targ}
	targ.stateDictEl = el
	md.stateDict[key] = el
	md.dictEls = append(md.dictEls, el)
	md.fill = append(md.fill, targ)
	return targ, nil
}

// seedDict interns an explicit set for a pre-made destination, as the
// operators do for their new start states.
func (g *Fsm) seedDict(md *mergeData, targ *State, set []*State) {
	sort.Slice(set, func(i, j int) bool { return set[i].id < set[j].id })
	el := &stateDictEl{set: set, targ: targ}
	targ.stateDictEl = el
	md.stateDict[stateSetKey(set)] = el
	md.dictEls = append(md.dictEls, el)
	md.fill = append(md.fill, targ)
}

// fillInStates drains the fill queue, completing the out transitions of
// every destination created during the merge.
func (g *Fsm) fillInStates(md *mergeData) error {
	for len(md.fill) > 0 {
		dest := md.fill[0]
		md.fill = md.fill[1:]
		for _, src := range dest.stateDictEl.set {
			if err := g.mergeStates(md, dest, src); err != nil {
				return err
			}
		}
	}
	g.clearStateDict(md)
	return nil
}

// clearStateDict drops the dictionary back-pointers once a merge operation
// completes; the scratch field must not leak across operators.
func (g *Fsm) clearStateDict(md *mergeData) {
	for _, el := range md.dictEls {
		el.targ.stateDictEl = nil
	}
	md.dictEls = nil
	md.stateDict = make(map[string]*stateDictEl)
}

// mergeStates draws one source state into the destination: out transitions,
// NFA branches, then the state data.
func (g *Fsm) mergeStates(md *mergeData, dest, src *State) error {
	if dest == src {
		return nil
	}
	if err := g.outTransCopy(md, dest, src.outList); err != nil {
		return err
	}
	for _, n := range src.nfaOut {
		g.attachNfaTrans(dest, n.ToState, n.Order,
			n.PushTable.clone(), n.PopTest.clone(), n.PopAction.clone(),
			n.PopCondSpace, append([]CondKey(nil), n.PopCondKeys...))
	}
	g.mergeStateData(dest, src)
	return nil
}

// mergeStatesLeaving merges a source state into a destination that may
// carry pending out data; the pending actions, priorities and conditions
// are first applied to a copy of the source's transitions.
func (g *Fsm) mergeStatesLeaving(md *mergeData, dest, src *State) error {
	if !g.hasOutData(dest) {
		return g.mergeStates(md, dest, src)
	}
	eff, err := g.copyStateForExpansion(src)
	if err != nil {
		return err
	}
	if err := g.applyOutData(dest, eff); err != nil {
		g.detachState(eff)
		return err
	}
	g.clearOutData(dest)
	err = g.mergeStates(md, dest, eff)
	g.detachState(eff)
	return err
}

// hasOutData reports whether the state has pending data to transfer onto
// leaving transitions.
func (g *Fsm) hasOutData(s *State) bool {
	return len(s.outActionTable) > 0 || len(s.outPriorTable) > 0 || s.outCondSpace != nil
}

// clearOutData drops the pending out data after it has been transferred.
func (g *Fsm) clearOutData(s *State) {
	s.outActionTable = nil
	s.outPriorTable = nil
	s.outCondSpace = nil
	s.outCondVals = nil
}

// transferOutData applies src's pending out data directly onto every
// transition of dest, plain and conditional, without merging states.
func (g *Fsm) transferOutData(dest, src *State) error {
	return g.applyOutData(src, dest)
}

// copyStateForExpansion duplicates a state's out structure into a fresh
// temporary state so expansion can rewrite it freely.
func (g *Fsm) copyStateForExpansion(src *State) (*State, error) {
	eff, err := g.addState()
	if err != nil {
		return nil, err
	}
	for _, t := range src.outList {
		if t.Plain() {
			nt := g.attachNewTrans(eff, t.Data.ToState, t.Low, t.High)
			nt.Data.copyTables(t.Data)
		} else {
			nt := g.attachNewCondTrans(eff, t.Low, t.High, t.CondSpace)
			for _, b := range t.Conds {
				nb := g.attachNewCond(nt, eff, b.ToState, b.Key)
				nb.copyTables(&b.TransData)
			}
		}
	}
	for _, n := range src.nfaOut {
		g.attachNfaTrans(eff, n.ToState, n.Order,
			n.PushTable.clone(), n.PopTest.clone(), n.PopAction.clone(),
			n.PopCondSpace, append([]CondKey(nil), n.PopCondKeys...))
	}
	if src.IsFinal() {
		g.SetFinState(eff)
	}
	eff.bits |= src.bits & stbBoth
	eff.toStateActionTable = src.toStateActionTable.clone()
	eff.fromStateActionTable = src.fromStateActionTable.clone()
	eff.eofActionTable = src.eofActionTable.clone()
	eff.errActionTable = src.errActionTable.clone()
	eff.lmItemSet = append([]*LmPart(nil), src.lmItemSet...)
	eff.epsilonTrans = append([]int(nil), src.epsilonTrans...)
	return eff, nil
}

// applyOutData pushes from's pending out actions, priorities and conditions
// onto every transition leaving the target state.
func (g *Fsm) applyOutData(from, target *State) error {
	for _, t := range target.outList {
		if t.Plain() {
			t.Data.ActionTable.SetActions(from.outActionTable)
			t.Data.PriorTable.SetPriors(from.outPriorTable)
		} else {
			for _, b := range t.Conds {
				b.ActionTable.SetActions(from.outActionTable)
				b.PriorTable.SetPriors(from.outPriorTable)
			}
		}
	}
	if from.outCondSpace != nil {
		if err := g.embedOutConds(target, from.outCondSpace, from.outCondVals); err != nil {
			return err
		}
	}
	return nil
}

// embedOutConds rewrites the target's out transitions so every one tests
// the pending condition space, keeping only the branches whose restriction
// to that space is among the allowed values.
func (g *Fsm) embedOutConds(target *State, space *CondSpace, vals *condValSet) error {
	oldList := append([]*Trans(nil), target.outList...)
	for _, t := range oldList {
		merged := g.ctx.AddCondSpace(condSetOf(t.CondSpace).Union(space.CondSet))
		if merged.FullSize() > transDensityLimit {
			return &TransDensityError{FullSize: merged.FullSize()}
		}
		nt, err := g.expandTransToSpace(target, t, merged)
		if err != nil {
			return err
		}
		// Drop branches whose out-space restriction is not allowed.
		for _, b := range append([]*CondBranch(nil), nt.Conds...) {
			restricted := restrictCondKey(b.Key, merged, space)
			if !vals.has(restricted) {
				g.detachCondTo(b)
				nt.removeCond(b)
			}
		}
	}
	return nil
}

func condSetOf(space *CondSpace) CondSet {
	if space == nil {
		return nil
	}
	return space.CondSet
}

// restrictCondKey projects a value in the merged space down to the bits of
// the sub space.
func restrictCondKey(val CondKey, merged, sub *CondSpace) CondKey {
	var out CondKey
	for i, cond := range sub.CondSet {
		p := merged.CondSet.Pos(cond)
		if p >= 0 && val&(1<<p) != 0 {
			out |= 1 << i
		}
	}
	return out
}

// expandTransToSpace replaces a transition with an equivalent one over the
// larger condition space, replicating payloads across the added bits.
// Returns the transition unchanged when the space already matches.
func (g *Fsm) expandTransToSpace(from *State, t *Trans, merged *CondSpace) (*Trans, error) {
	if t.CondSpace == merged {
		return t, nil
	}
	nt := newCondTrans(t.Low, t.High, merged)
	if t.Plain() {
		missing := len(merged.CondSet)
		for fill := CondKey(0); fill < 1<<missing; fill++ {
			b := &CondBranch{Owner: nt, Key: fill}
			b.FromState = from
			b.copyTables(t.Data)
			if err := g.chargeCondCost(nil, &b.TransData); err != nil {
				return nil, err
			}
			nt.Conds = append(nt.Conds, b)
			if t.Data.ToState != nil {
				g.attachCondTo(from, t.Data.ToState, b)
			}
		}
	} else {
		missing := missingCondCount(t.CondSpace, merged)
		for _, src := range t.Conds {
			for fill := CondKey(0); fill < 1<<missing; fill++ {
				b := &CondBranch{Owner: nt, Key: expandCondKey(src.Key, t.CondSpace, merged, fill)}
				b.FromState = from
				b.copyTables(&src.TransData)
				if fill > 0 {
					if err := g.chargeCondCost(nil, &b.TransData); err != nil {
						return nil, err
					}
				}
				nt.Conds = append(nt.Conds, b)
				if src.ToState != nil {
					g.attachCondTo(from, src.ToState, b)
				}
			}
		}
		sort.Slice(nt.Conds, func(i, j int) bool { return nt.Conds[i].Key < nt.Conds[j].Key })
	}
	// Swap the new transition in place of the old.
	g.detachTrans(from, t)
	g.insertTransSorted(from, nt)
	return nt, nil
}

// chargeCondCost accounts for duplicating cost-marked actions during
// condition expansion. md may be nil for expansions outside a merge.
func (g *Fsm) chargeCondCost(md *mergeData, d *TransData) error {
	for _, el := range d.ActionTable {
		if el.Action.CostMark {
			if md == nil {
				continue
			}
			md.condCosts[el.Action.CostID]++
			if md.condCosts[el.Action.CostID] > condCostThreshold {
				return &CondCostTooHighError{CostID: el.Action.CostID}
			}
		}
	}
	return nil
}

// mergeStateData unions the source's state-level data into the destination.
func (g *Fsm) mergeStateData(dest, src *State) {
	if src.IsFinal() {
		g.SetFinState(dest)
		dest.bits |= src.bits & stbBoth
	}
	dest.toStateActionTable.SetActions(src.toStateActionTable)
	dest.fromStateActionTable.SetActions(src.fromStateActionTable)
	dest.outActionTable.SetActions(src.outActionTable)
	dest.eofActionTable.SetActions(src.eofActionTable)
	dest.errActionTable.SetActions(src.errActionTable)
	dest.outPriorTable.SetPriors(src.outPriorTable)
	for _, p := range src.lmItemSet {
		dest.addLmItem(p)
	}
	for _, e := range src.epsilonTrans {
		dest.epsilonTrans = append(dest.epsilonTrans, e)
	}
	if src.outCondSpace != nil {
		if dest.outCondSpace == nil {
			dest.outCondSpace = src.outCondSpace
			dest.outCondVals = src.outCondVals.clone()
		} else if dest.outCondSpace != src.outCondSpace {
			merged := g.ctx.AddCondSpace(dest.outCondSpace.CondSet.Union(src.outCondSpace.CondSet))
			dv := dest.outCondVals.expand(dest.outCondSpace, merged)
			sv := src.outCondVals.expand(src.outCondSpace, merged)
			dv.union(sv)
			dest.outCondSpace = merged
			dest.outCondVals = dv
		} else {
			dest.outCondVals.union(src.outCondVals)
		}
	}
}

// addInTrans draws the properties of src into dest when a transition comes
// to represent both.
func addInTrans(dest, src *TransData) {
	dest.LmActionTable.SetActions(src.LmActionTable)
	dest.ActionTable.SetActions(src.ActionTable)
	dest.PriorTable.SetPriors(src.PriorTable)
}

// outTransCopy copies a source transition list into the destination state,
// crossing overlapping ranges. The destination's out list is rebuilt from
// the emitted windows; every window gets its own transition so split halves
// never share table data.
func (g *Fsm) outTransCopy(md *mergeData, dest *State, srcList []*Trans) error {
	oldList := append([]*Trans(nil), dest.outList...)
	var newList []*Trans

	it := NewRangePairIter(g.ctx.keyOps, oldList, srcList)
	for it.Next() {
		switch it.Class {
		case RangeInS1:
			lo, hi, t := it.S1()
			nt, err := g.dupTransWindow(md, dest, t, lo, hi)
			if err != nil {
				g.discardWindows(dest, newList)
				return err
			}
			newList = append(newList, nt)

		case RangeInS2:
			lo, hi, t := it.S2()
			nt, err := g.dupTransWindow(md, dest, t, lo, hi)
			if err != nil {
				g.discardWindows(dest, newList)
				return err
			}
			newList = append(newList, nt)

		case RangeOverlap:
			lo, hi, t1 := it.S1()
			_, _, t2 := it.S2()
			nt, err := g.crossTransitions(md, dest, t1, t2, lo, hi)
			if err != nil {
				g.discardWindows(dest, newList)
				return err
			}
			newList = append(newList, nt)

		case BreakS1, BreakS2:
			// Window duplication below keeps the halves independent; no
			// shared data to copy here.
		}
	}

	// Swap in the rebuilt list.
	for _, t := range oldList {
		g.detachTrans(dest, t)
	}
	for _, t := range newList {
		g.insertTransSorted(dest, t)
	}
	return nil
}

// discardWindows detaches partially built windows after a failed merge so
// the graph stays consistent on the error path.
func (g *Fsm) discardWindows(dest *State, list []*Trans) {
	for _, t := range list {
		if t.Plain() {
			g.detachPlainTo(t)
		} else {
			for _, b := range t.Conds {
				g.detachCondTo(b)
			}
		}
	}
}

// dupTransWindow duplicates a transition clipped to [lo, hi], attached from
// dest. The new transition is not yet in any out list.
func (g *Fsm) dupTransWindow(md *mergeData, dest *State, t *Trans, lo, hi Key) (*Trans, error) {
	if t.Plain() {
		nt := newPlainTrans(lo, hi)
		nt.Data.FromState = dest
		nt.Data.copyTables(t.Data)
		if t.Data.ToState != nil {
			g.attachPlainTo(dest, t.Data.ToState, nt)
		}
		return nt, nil
	}
	nt := newCondTrans(lo, hi, t.CondSpace)
	for _, b := range t.Conds {
		nb := &CondBranch{Owner: nt, Key: b.Key}
		nb.FromState = dest
		nb.copyTables(&b.TransData)
		nt.Conds = append(nt.Conds, nb)
		if b.ToState != nil {
			g.attachCondTo(dest, b.ToState, nb)
		}
	}
	return nt, nil
}

// mergeDest resolves the destination of a crossed transition pair. When one
// side goes to error the other side's target carries; otherwise the merged
// target is the state representing the union of both represented sets.
func (g *Fsm) mergeDest(md *mergeData, to1, to2 *State) (*State, error) {
	switch {
	case to1 == nil && to2 == nil:
		return nil, nil
	case to1 == nil:
		return to2, nil
	case to2 == nil:
		return to1, nil
	case to1 == to2:
		return to1, nil
	}
	set := unionStateSets(representedSet(to1), representedSet(to2))
	if len(set) == 1 {
		return set[0], nil
	}
	return g.dictTarget(md, set)
}

// crossTransitions produces the combined transition for an overlap window.
// Priorities resolve first; only equal priorities actually merge.
func (g *Fsm) crossTransitions(md *mergeData, dest *State, t1, t2 *Trans, lo, hi Key) (*Trans, error) {
	if t1.Plain() && t2.Plain() {
		return g.crossBothPlain(md, dest, t1, t2, lo, hi)
	}

	merged := g.ctx.AddCondSpace(condSetOf(t1.CondSpace).Union(condSetOf(t2.CondSpace)))
	if merged.FullSize() > transDensityLimit {
		return nil, &TransDensityError{FullSize: merged.FullSize()}
	}
	e1, err := g.expandedBranches(md, dest, t1, merged)
	if err != nil {
		return nil, err
	}
	e2, err := g.expandedBranches(md, dest, t2, merged)
	if err != nil {
		return nil, err
	}

	nt := newCondTrans(lo, hi, merged)
	vi := NewValPairIter(e1, e2)
	for vi.Next() {
		switch vi.Class {
		case ValInS1:
			nt.Conds = append(nt.Conds, g.adoptBranch(dest, nt, vi.B1))
		case ValInS2:
			nt.Conds = append(nt.Conds, g.adoptBranch(dest, nt, vi.B2))
		case ValOverlap:
			nb, err := g.crossBranch(md, dest, nt, vi.B1, vi.B2)
			if err != nil {
				for _, b := range nt.Conds {
					g.detachCondTo(b)
				}
				return nil, err
			}
			nt.Conds = append(nt.Conds, nb)
		}
	}
	return nt, nil
}

// expandedBranches returns the branch list of a transition lifted to the
// merged space. The branches are detached copies; they carry no in-list
// entries yet.
func (g *Fsm) expandedBranches(md *mergeData, dest *State, t *Trans, merged *CondSpace) ([]*CondBranch, error) {
	var out []*CondBranch
	if t.Plain() {
		missing := len(merged.CondSet)
		for fill := CondKey(0); fill < 1<<missing; fill++ {
			b := &CondBranch{Key: fill}
			b.FromState = dest
			b.ToState = t.Data.ToState
			b.copyTables(t.Data)
			if fill > 0 {
				if err := g.chargeCondCost(md, &b.TransData); err != nil {
					return nil, err
				}
			}
			out = append(out, b)
		}
		return out, nil
	}
	missing := missingCondCount(t.CondSpace, merged)
	for _, src := range t.Conds {
		for fill := CondKey(0); fill < 1<<missing; fill++ {
			b := &CondBranch{Key: expandCondKey(src.Key, t.CondSpace, merged, fill)}
			b.FromState = dest
			b.ToState = src.ToState
			b.copyTables(&src.TransData)
			if fill > 0 {
				if err := g.chargeCondCost(md, &b.TransData); err != nil {
					return nil, err
				}
			}
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// adoptBranch attaches a lifted branch to its owner and destination.
func (g *Fsm) adoptBranch(dest *State, owner *Trans, b *CondBranch) *CondBranch {
	b.Owner = owner
	to := b.ToState
	b.ToState = nil
	if to != nil {
		g.attachCondTo(dest, to, b)
	}
	return b
}

// crossBranch combines two lifted branches with the same condition key.
func (g *Fsm) crossBranch(md *mergeData, dest *State, owner *Trans, b1, b2 *CondBranch) (*CondBranch, error) {
	cmp, err := comparePrior(b1.PriorTable, b2.PriorTable)
	if err != nil {
		return nil, err
	}
	var winner *CondBranch
	switch {
	case cmp > 0:
		winner = b1
	case cmp < 0:
		winner = b2
	}
	if winner != nil {
		return g.adoptBranch(dest, owner, winner), nil
	}

	to, err := g.mergeDest(md, b1.ToState, b2.ToState)
	if err != nil {
		return nil, err
	}
	nb := &CondBranch{Owner: owner, Key: b1.Key}
	nb.FromState = dest
	nb.copyTables(&b1.TransData)
	addInTrans(&nb.TransData, &b2.TransData)
	if to != nil {
		g.attachCondTo(dest, to, nb)
	}
	return nb, nil
}

// crossBothPlain is the fast path for crossing two plain transitions.
func (g *Fsm) crossBothPlain(md *mergeData, dest *State, t1, t2 *Trans, lo, hi Key) (*Trans, error) {
	cmp, err := comparePrior(t1.Data.PriorTable, t2.Data.PriorTable)
	if err != nil {
		return nil, err
	}
	switch {
	case cmp > 0:
		return g.dupTransWindow(md, dest, t1, lo, hi)
	case cmp < 0:
		return g.dupTransWindow(md, dest, t2, lo, hi)
	}

	to, err := g.mergeDest(md, t1.Data.ToState, t2.Data.ToState)
	if err != nil {
		return nil, err
	}
	nt := newPlainTrans(lo, hi)
	nt.Data.FromState = dest
	nt.Data.copyTables(t1.Data)
	addInTrans(nt.Data, t2.Data)
	if to != nil {
		g.attachPlainTo(dest, to, nt)
	}
	return nt, nil
}
