package fsm

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Minimize reduces the machine with the strategy selected on the context.
func (g *Fsm) Minimize() {
	g.removeUnreachableStates()
	switch g.ctx.minimizeOpt {
	case MinimizeApprox:
		g.minimizeApproximate()
	case MinimizeStable:
		g.minimizeStable()
	case MinimizePartition1:
		g.minimizePartition1()
	case MinimizePartition2:
		g.minimizePartition2()
	}
	g.compressTransitions()
}

// compareMinStateData distinguishes states that can never fuse: finality,
// entry ids, then the stored state data.
func compareMinStateData(a, b *State) int {
	af, bf := 0, 0
	if a.IsFinal() {
		af = 1
	}
	if b.IsFinal() {
		bf = 1
	}
	if af != bf {
		return af - bf
	}
	if len(a.entryIDs) != len(b.entryIDs) {
		if len(a.entryIDs) < len(b.entryIDs) {
			return -1
		}
		return 1
	}
	for i := range a.entryIDs {
		if a.entryIDs[i] != b.entryIDs[i] {
			if a.entryIDs[i] < b.entryIDs[i] {
				return -1
			}
			return 1
		}
	}
	if len(a.nfaOut) != len(b.nfaOut) {
		if len(a.nfaOut) < len(b.nfaOut) {
			return -1
		}
		return 1
	}
	return compareStateData(a, b)
}

//
// Approximate minimization.
//

// approxCompare compares two states on everything, targets by identity. A
// zero result means the states are interchangeable right now.
func (g *Fsm) approxCompare(a, b *State) int {
	if c := compareMinStateData(a, b); c != 0 {
		return c
	}
	it := NewRangePairIter(g.ctx.keyOps, a.outList, b.outList)
	for it.Next() {
		switch it.Class {
		case RangeInS1:
			return 1
		case RangeInS2:
			return -1
		case RangeOverlap:
			_, _, t1 := it.S1()
			_, _, t2 := it.S2()
			if c := g.compareFullTrans(t1, t2); c != 0 {
				return c
			}
		}
	}
	return 0
}

// compareFullTrans compares data and exact targets of two transitions.
func (g *Fsm) compareFullTrans(t1, t2 *Trans) int {
	if c := compareCondShape(t1, t2); c != 0 {
		return c
	}
	if t1.Plain() {
		if c := compareTransData(t1.Data, t2.Data); c != 0 {
			return c
		}
		return compareStatePtr(t1.Data.ToState, t2.Data.ToState)
	}
	for i := range t1.Conds {
		b1, b2 := t1.Conds[i], t2.Conds[i]
		if c := compareTransData(&b1.TransData, &b2.TransData); c != 0 {
			return c
		}
		if c := compareStatePtr(b1.ToState, b2.ToState); c != 0 {
			return c
		}
	}
	return 0
}

// minimizeApproximate fuses states with identical out structures until a
// fixed point. No extra space; does not always find the minimal machine.
func (g *Fsm) minimizeApproximate() {
	for g.minimizeRound() {
	}
}

// minimizeRound performs one pass, fusing every interchangeable pair it
// finds. Reports whether anything fused.
func (g *Fsm) minimizeRound() bool {
	fused := false
	for s1 := g.stateList.head; s1 != nil; s1 = s1.next {
		for s2 := s1.next; s2 != nil; {
			next := s2.next
			if g.approxCompare(s1, s2) == 0 {
				g.fuseEquivStates(s1, s2)
				fused = true
			}
			s2 = next
		}
	}
	return fused
}

//
// Partition minimization.
//

type minPartition struct {
	id     int
	states []*State
	active bool
}

// enterPartitionPhase distributes states into initial partitions by state
// data, putting the partition pointer into the scratch slot.
func (g *Fsm) enterPartitionPhase() []*minPartition {
	var states []*State
	for s := g.stateList.head; s != nil; s = s.next {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		if c := compareMinStateData(states[i], states[j]); c != 0 {
			return c < 0
		}
		return states[i].id < states[j].id
	})

	var parts []*minPartition
	for i := 0; i < len(states); {
		j := i
		for j < len(states) && compareMinStateData(states[i], states[j]) == 0 {
			j++
		}
		p := &minPartition{id: len(parts), states: states[i:j:j], active: true}
		parts = append(parts, p)
		i = j
	}
	for _, p := range parts {
		for _, s := range p.states {
			s.alg = scratch{kind: scratchPartition, partition: p}
		}
	}
	return parts
}

// comparePart compares out structures with targets compared by partition.
func (g *Fsm) comparePart(a, b *State) int {
	it := NewRangePairIter(g.ctx.keyOps, a.outList, b.outList)
	for it.Next() {
		switch it.Class {
		case RangeInS1:
			return 1
		case RangeInS2:
			return -1
		case RangeOverlap:
			_, _, t1 := it.S1()
			_, _, t2 := it.S2()
			if c := g.comparePartTrans(t1, t2); c != 0 {
				return c
			}
		}
	}
	return 0
}

func (g *Fsm) comparePartTrans(t1, t2 *Trans) int {
	if c := compareCondShape(t1, t2); c != 0 {
		return c
	}
	if t1.Plain() {
		if c := compareTransData(t1.Data, t2.Data); c != 0 {
			return c
		}
		return comparePartitionPtr(t1.Data.ToState, t2.Data.ToState)
	}
	for i := range t1.Conds {
		b1, b2 := t1.Conds[i], t2.Conds[i]
		if c := compareTransData(&b1.TransData, &b2.TransData); c != 0 {
			return c
		}
		if c := comparePartitionPtr(b1.ToState, b2.ToState); c != 0 {
			return c
		}
	}
	return 0
}

func comparePartitionPtr(a, b *State) int {
	ai, bi := -1, -1
	if a != nil {
		if a.alg.kind != scratchPartition {
			structuralf("partition read outside partition phase")
		}
		ai = a.alg.partition.id
	}
	if b != nil {
		if b.alg.kind != scratchPartition {
			structuralf("partition read outside partition phase")
		}
		bi = b.alg.partition.id
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}

// splitPartition breaks a partition whose members transition into differing
// partitions. Returns the new partitions, the original first.
func (g *Fsm) splitPartition(p *minPartition, nextID *int) []*minPartition {
	if len(p.states) < 2 {
		return nil
	}
	sort.Slice(p.states, func(i, j int) bool {
		if c := g.comparePart(p.states[i], p.states[j]); c != 0 {
			return c < 0
		}
		return p.states[i].id < p.states[j].id
	})
	var groups [][]*State
	for i := 0; i < len(p.states); {
		j := i
		for j < len(p.states) && g.comparePart(p.states[i], p.states[j]) == 0 {
			j++
		}
		groups = append(groups, p.states[i:j:j])
		i = j
	}
	if len(groups) == 1 {
		return nil
	}
	var out []*minPartition
	p.states = groups[0]
	for _, grp := range groups[1:] {
		np := &minPartition{id: *nextID, states: grp, active: true}
		*nextID++
		for _, s := range grp {
			s.alg.partition = np
		}
		out = append(out, np)
	}
	return out
}

// minimizePartition1 iterates splitting over all partitions until stable.
func (g *Fsm) minimizePartition1() {
	parts := g.enterPartitionPhase()
	nextID := len(parts)
	for changed := true; changed; {
		changed = false
		for _, p := range append([]*minPartition(nil), parts...) {
			if np := g.splitPartition(p, &nextID); len(np) > 0 {
				parts = append(parts, np...)
				changed = true
			}
		}
	}
	g.fusePartitions(parts)
}

// minimizePartition2 drives splitting with a worklist: only partitions with
// a transition into a freshly split partition are candidates.
func (g *Fsm) minimizePartition2() {
	parts := g.enterPartitionPhase()
	nextID := len(parts)

	work := append([]*minPartition(nil), parts...)
	for len(work) > 0 {
		p := work[0]
		work = work[1:]
		p.active = false
		np := g.splitPartition(p, &nextID)
		if len(np) == 0 {
			continue
		}
		parts = append(parts, np...)
		// Any partition reaching a split one may now split as well.
		candidates := make(map[*minPartition]bool)
		for _, split := range append(np, p) {
			for _, s := range split.states {
				for _, t := range s.inPlain {
					candidates[t.Data.FromState.alg.partition] = true
				}
				for _, b := range s.inCond {
					candidates[b.FromState.alg.partition] = true
				}
			}
		}
		ordered := make([]*minPartition, 0, len(candidates))
		for c := range candidates {
			ordered = append(ordered, c)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })
		for _, c := range ordered {
			if !c.active {
				c.active = true
				work = append(work, c)
			}
		}
	}
	g.fusePartitions(parts)
}

// fusePartitions collapses every partition to its first member.
func (g *Fsm) fusePartitions(parts []*minPartition) {
	for _, p := range parts {
		if len(p.states) < 2 {
			continue
		}
		sort.Slice(p.states, func(i, j int) bool { return p.states[i].id < p.states[j].id })
		dest := p.states[0]
		for _, src := range p.states[1:] {
			g.fuseEquivStates(dest, src)
		}
	}
	for s := g.stateList.head; s != nil; s = s.next {
		s.alg = scratch{kind: scratchNone}
	}
}

//
// Mark-based minimization.
//

// markIndex is the symmetric pair table of the stable minimization: bit set
// means the pair of state numbers is distinguishable.
type markIndex struct {
	n    int
	bits *bitset.BitSet
}

func newMarkIndex(n int) *markIndex {
	return &markIndex{n: n, bits: bitset.New(uint(n * n))}
}

func (m *markIndex) markPair(i, j int) {
	if i > j {
		i, j = j, i
	}
	m.bits.Set(uint(i*m.n + j))
}

func (m *markIndex) isPairMarked(i, j int) bool {
	if i == j {
		return false
	}
	if i > j {
		i, j = j, i
	}
	return m.bits.Test(uint(i*m.n + j))
}

func stateNum(s *State) int {
	if s.alg.kind != scratchStateNum {
		structuralf("state number read outside numbering phase")
	}
	return s.alg.stateNum
}

// minimizeStable marks distinguishable pairs until stable, then fuses the
// unmarked ones. Quadratic space, stable result.
func (g *Fsm) minimizeStable() {
	g.setStateNumbers(0)
	var states []*State
	for s := g.stateList.head; s != nil; s = s.next {
		states = append(states, s)
	}
	mi := newMarkIndex(len(states))

	g.initialMarkRound(mi, states)
	for g.markRound(mi, states) {
	}
	g.fuseUnmarkedPairs(mi, states)

	for s := g.stateList.head; s != nil; s = s.next {
		s.alg = scratch{kind: scratchNone}
	}
}

// initialMarkRound marks pairs with differing finality, state data or out
// transition structure.
func (g *Fsm) initialMarkRound(mi *markIndex, states []*State) {
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			if compareMinStateData(states[i], states[j]) != 0 {
				mi.markPair(i, j)
				continue
			}
			if g.outStructureDiffers(states[i], states[j]) {
				mi.markPair(i, j)
			}
		}
	}
}

// outStructureDiffers reports differing coverage or transition data, target
// states not considered.
func (g *Fsm) outStructureDiffers(a, b *State) bool {
	it := NewRangePairIter(g.ctx.keyOps, a.outList, b.outList)
	for it.Next() {
		switch it.Class {
		case RangeInS1, RangeInS2:
			return true
		case RangeOverlap:
			_, _, t1 := it.S1()
			_, _, t2 := it.S2()
			if compareCondShape(t1, t2) != 0 {
				return true
			}
			if t1.Plain() {
				if compareTransData(t1.Data, t2.Data) != 0 {
					return true
				}
			} else {
				for k := range t1.Conds {
					if compareTransData(&t1.Conds[k].TransData, &t2.Conds[k].TransData) != 0 {
						return true
					}
				}
			}
		}
	}
	return false
}

// markRound marks pairs whose matching transitions lead to an already
// marked pair. Reports whether a new pair was marked.
func (g *Fsm) markRound(mi *markIndex, states []*State) bool {
	marked := false
	for i := 0; i < len(states); i++ {
		for j := i + 1; j < len(states); j++ {
			if mi.isPairMarked(i, j) {
				continue
			}
			if g.shouldMark(mi, states[i], states[j]) {
				mi.markPair(i, j)
				marked = true
			}
		}
	}
	return marked
}

func (g *Fsm) shouldMark(mi *markIndex, a, b *State) bool {
	it := NewRangePairIter(g.ctx.keyOps, a.outList, b.outList)
	for it.Next() {
		if it.Class != RangeOverlap {
			continue
		}
		_, _, t1 := it.S1()
		_, _, t2 := it.S2()
		if t1.Plain() != t2.Plain() {
			return true
		}
		if t1.Plain() {
			if shouldMarkTargets(mi, t1.Data.ToState, t2.Data.ToState) {
				return true
			}
		} else {
			for k := range t1.Conds {
				if shouldMarkTargets(mi, t1.Conds[k].ToState, t2.Conds[k].ToState) {
					return true
				}
			}
		}
	}
	return false
}

func shouldMarkTargets(mi *markIndex, to1, to2 *State) bool {
	if (to1 == nil) != (to2 == nil) {
		return true
	}
	if to1 == nil || to1 == to2 {
		return false
	}
	return mi.isPairMarked(stateNum(to1), stateNum(to2))
}

// fuseUnmarkedPairs merges every state into the primary state of its
// equivalence class: the lowest-numbered state it is unmarked against.
func (g *Fsm) fuseUnmarkedPairs(mi *markIndex, states []*State) {
	fusedInto := make([]int, len(states))
	for i := range fusedInto {
		fusedInto[i] = -1
	}
	for j := 1; j < len(states); j++ {
		for i := 0; i < j; i++ {
			if fusedInto[i] >= 0 {
				continue
			}
			if !mi.isPairMarked(i, j) {
				fusedInto[j] = i
				g.fuseEquivStates(states[i], states[j])
				break
			}
		}
	}
}

//
// State fusing.
//

// moveInwardTrans redirects every in transition of src to dest.
func (g *Fsm) moveInwardTrans(dest, src *State) {
	for len(src.inPlain) > 0 {
		t := src.inPlain[0]
		from := t.Data.FromState
		g.detachPlainTo(t)
		g.attachPlainTo(from, dest, t)
	}
	for len(src.inCond) > 0 {
		b := src.inCond[0]
		from := b.FromState
		g.detachCondTo(b)
		g.attachCondTo(from, dest, b)
	}
	for len(src.inNfa) > 0 {
		n := src.inNfa[0]
		from := n.FromState
		g.detachNfaTrans(n)
		g.attachNfaTrans(from, dest, n.Order, n.PushTable, n.PopTest, n.PopAction,
			n.PopCondSpace, n.PopCondKeys)
	}
}

// fuseEquivStates makes src and dest the same state: in transitions move to
// dest and src is removed.
func (g *Fsm) fuseEquivStates(dest, src *State) {
	g.moveInwardTrans(dest, src)
	if g.startState == src {
		g.startState = dest
	}
	for _, id := range append([]int(nil), src.entryIDs...) {
		g.ChangeEntry(id, dest, src)
		g.entryPoints[id] = dest
	}
	g.detachState(src)
}

// compressTransitions coalesces neighboring transitions that go to the same
// state with the same data and contiguous ranges.
func (g *Fsm) compressTransitions() {
	ops := g.ctx.keyOps
	for s := g.stateList.head; s != nil; s = s.next {
		for i := 0; i+1 < len(s.outList); {
			prev, cur := s.outList[i], s.outList[i+1]
			next, ok := ops.Increment(prev.High)
			if ok && ops.Eq(next, cur.Low) && g.sameTransPayload(prev, cur) {
				prev.High = cur.High
				g.detachTrans(s, cur)
				continue
			}
			i++
		}
	}
}

func (g *Fsm) sameTransPayload(a, b *Trans) bool {
	if a.Plain() != b.Plain() {
		return false
	}
	if a.Plain() {
		return a.Data.ToState == b.Data.ToState && compareTransData(a.Data, b.Data) == 0
	}
	if compareCondShape(a, b) != 0 {
		return false
	}
	for i := range a.Conds {
		if a.Conds[i].ToState != b.Conds[i].ToState {
			return false
		}
		if compareTransData(&a.Conds[i].TransData, &b.Conds[i].TransData) != 0 {
			return false
		}
	}
	return true
}
