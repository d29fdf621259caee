package fsm

import "sort"

// State bits. Graph-of-origin bits drive the final-state predicates of the
// cross-product operators.
type stateBits uint8

const (
	stbGraph1 stateBits = 1 << iota
	stbGraph2
	stbFinal
	stbMarked
	stbOnList
	stbNfaRep
)

const stbBoth = stbGraph1 | stbGraph2

// scratchKind tags which member of the per-state scratch slot is live. The
// graph drives the tag by phase; stale reads are programmer bugs.
type scratchKind uint8

const (
	scratchNone scratchKind = iota
	scratchStateMap
	scratchPartition
	scratchStateNum
)

type scratch struct {
	kind      scratchKind
	stateMap  *State
	partition *minPartition
	stateNum  int
}

// State is a node in the graph. Out transitions are kept sorted by low key
// with no overlaps; a gap in the covered region implicitly targets the error
// state. In lists mirror the out lists of other states for O(in) detachment.
type State struct {
	// id is unique within the context, assigned at creation. Canonical
	// state-set keys and deterministic iteration both hang off it.
	id int

	outList []*Trans

	// In transition lists.
	inPlain []*Trans
	inCond  []*CondBranch
	inNfa   []*NfaTrans

	// eofTarget is set only during scanner construction.
	eofTarget *State

	// Entry points into the state.
	entryIDs []int

	// Epsilon transitions, by entry name id.
	epsilonTrans []int

	// Number of in transitions from states other than this one.
	foreignInTrans int

	alg  scratch
	bits stateBits

	// stateDictEl points at the dictionary element carrying the set of
	// source states this state represents during a merge.
	stateDictEl *stateDictEl

	// NFA transitions, populated only by the nondeterministic operators.
	nfaOut []*NfaTrans

	// state list links, owned by the graph.
	prev, next *State
	onMisfit   bool

	// nfa list links.
	nfaPrev, nfaNext *State
	onNfaList        bool

	// Out priorities transferred to future out transitions.
	outPriorTable PriorTable

	// toState actions run immediately after the transition actions of
	// incoming transitions; fromState actions run immediately before the
	// transition actions of outgoing transitions.
	toStateActionTable   ActionTable
	fromStateActionTable ActionTable

	// Actions to add to any future transitions that leave via this state.
	outActionTable ActionTable

	// Conditions to add to any future transitions that leave via this state.
	outCondSpace *CondSpace
	outCondVals  *condValSet

	errActionTable ErrActionTable
	eofActionTable ActionTable

	// Longest match items that may be active in this state.
	lmItemSet []*LmPart

	guardedInTable PriorTable
}

// IsFinal reports whether the state is in the machine's final set.
func (s *State) IsFinal() bool { return s.bits&stbFinal != 0 }

func (s *State) isMarked() bool { return s.bits&stbMarked != 0 }

// addEntryID inserts an entry id into the sorted set.
func (s *State) addEntryID(id int) {
	i := sort.SearchInts(s.entryIDs, id)
	if i < len(s.entryIDs) && s.entryIDs[i] == id {
		return
	}
	s.entryIDs = append(s.entryIDs, 0)
	copy(s.entryIDs[i+1:], s.entryIDs[i:])
	s.entryIDs[i] = id
}

func (s *State) removeEntryID(id int) {
	i := sort.SearchInts(s.entryIDs, id)
	if i < len(s.entryIDs) && s.entryIDs[i] == id {
		s.entryIDs = append(s.entryIDs[:i], s.entryIDs[i+1:]...)
	}
}

// addLmItem inserts a longest-match part into the sorted item set.
func (s *State) addLmItem(part *LmPart) {
	i := sort.Search(len(s.lmItemSet), func(i int) bool { return s.lmItemSet[i].ID >= part.ID })
	if i < len(s.lmItemSet) && s.lmItemSet[i] == part {
		return
	}
	s.lmItemSet = append(s.lmItemSet, nil)
	copy(s.lmItemSet[i+1:], s.lmItemSet[i:])
	s.lmItemSet[i] = part
}

// compareStateData compares the data stored on states that distinguishes
// them for minimization: finality bits are handled separately; here we
// compare the table set and pending out data.
func compareStateData(a, b *State) int {
	if c := compareActionTables(a.toStateActionTable, b.toStateActionTable); c != 0 {
		return c
	}
	if c := compareActionTables(a.fromStateActionTable, b.fromStateActionTable); c != 0 {
		return c
	}
	if c := compareActionTables(a.outActionTable, b.outActionTable); c != 0 {
		return c
	}
	if c := compareActionTables(a.eofActionTable, b.eofActionTable); c != 0 {
		return c
	}
	if c := compareErrActionTables(a.errActionTable, b.errActionTable); c != 0 {
		return c
	}
	if c := comparePriorTables(a.outPriorTable, b.outPriorTable); c != 0 {
		return c
	}
	if c := compareCondSpacePtr(a.outCondSpace, b.outCondSpace); c != 0 {
		return c
	}
	if c := compareCondVals(a.outCondVals, b.outCondVals); c != 0 {
		return c
	}
	return compareLmItemSets(a.lmItemSet, b.lmItemSet)
}

func compareCondSpacePtr(a, b *CondSpace) int {
	ai, bi := -1, -1
	if a != nil {
		ai = a.SpaceID
	}
	if b != nil {
		bi = b.SpaceID
	}
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	}
	return 0
}

func compareCondVals(a, b *condValSet) int {
	var ak, bk []CondKey
	if a != nil {
		ak = a.keys()
	}
	if b != nil {
		bk = b.keys()
	}
	if len(ak) != len(bk) {
		if len(ak) < len(bk) {
			return -1
		}
		return 1
	}
	for i := range ak {
		if ak[i] != bk[i] {
			if ak[i] < bk[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareLmItemSets(a, b []*LmPart) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i].ID < b[i].ID {
				return -1
			}
			return 1
		}
	}
	return 0
}

// NfaTrans is an unlabelled nondeterministic branch left in the graph by the
// NFA operators. Push actions run when the branch is taken; pop tests and
// actions run when the runtime unwinds it.
type NfaTrans struct {
	FromState *State
	ToState   *State

	// Order ranks branches out of one state; the runtime tries them in
	// increasing order.
	Order int

	PushTable ActionTable
	PopTest   ActionTable
	PopAction ActionTable

	PopCondSpace *CondSpace
	PopCondKeys  []CondKey
}
