package fsm

import "sort"

// TransData is the payload shared by plain transitions and condition
// branches: the endpoints plus the action, priority and longest-match tables.
type TransData struct {
	FromState *State
	ToState   *State

	ActionTable   ActionTable
	PriorTable    PriorTable
	LmActionTable LmActionTable
}

func (d *TransData) copyTables(other *TransData) {
	d.ActionTable = other.ActionTable.clone()
	d.PriorTable = other.PriorTable.clone()
	d.LmActionTable = other.LmActionTable.clone()
}

// Trans occupies a non-overlapping key range in a state's out list. It is a
// tagged variant: plain (Data set, CondSpace nil) carries a single
// destination; conditional (CondSpace set) carries an ordered branch list
// keyed by condition value.
type Trans struct {
	Low, High Key

	// CondSpace names the conditions tested on this range. nil means the
	// transition is plain.
	CondSpace *CondSpace

	// Data is the plain payload. Set exactly when CondSpace is nil.
	Data *TransData

	// Conds is the conditional branch list, ordered by condition key.
	Conds []*CondBranch
}

// Plain reports whether the transition has the single-destination shape.
func (t *Trans) Plain() bool { return t.CondSpace == nil }

// CondFullSize is the number of possible condition values on this range.
func (t *Trans) CondFullSize() int {
	if t.CondSpace == nil {
		return 1
	}
	return t.CondSpace.FullSize()
}

// CondBranch is one entry in a conditional transition, selected when the
// runtime condition value equals Key.
type CondBranch struct {
	TransData

	// Owner is the transition holding this branch.
	Owner *Trans

	Key CondKey
}

func newPlainTrans(lo, hi Key) *Trans {
	return &Trans{Low: lo, High: hi, Data: &TransData{}}
}

func newCondTrans(lo, hi Key, space *CondSpace) *Trans {
	return &Trans{Low: lo, High: hi, CondSpace: space}
}

// findCond returns the branch with the given key, or nil.
func (t *Trans) findCond(key CondKey) *CondBranch {
	i := sort.Search(len(t.Conds), func(i int) bool { return t.Conds[i].Key >= key })
	if i < len(t.Conds) && t.Conds[i].Key == key {
		return t.Conds[i]
	}
	return nil
}

// insertCond places a branch into the ordered branch list. Duplicate keys are
// a programmer bug.
func (t *Trans) insertCond(b *CondBranch) {
	i := sort.Search(len(t.Conds), func(i int) bool { return t.Conds[i].Key >= b.Key })
	if i < len(t.Conds) && t.Conds[i].Key == b.Key {
		structuralf("duplicate condition key %d on range [%d..%d]", b.Key, t.Low, t.High)
	}
	t.Conds = append(t.Conds, nil)
	copy(t.Conds[i+1:], t.Conds[i:])
	t.Conds[i] = b
}

func (t *Trans) removeCond(b *CondBranch) {
	for i, c := range t.Conds {
		if c == b {
			t.Conds = append(t.Conds[:i], t.Conds[i+1:]...)
			return
		}
	}
	structuralf("condition branch not found on its owner")
}

// compareTransData compares the action, priority and longest-match tables of
// two payloads. Target states are not considered.
func compareTransData(a, b *TransData) int {
	if c := compareActionTables(a.ActionTable, b.ActionTable); c != 0 {
		return c
	}
	if c := comparePriorTables(a.PriorTable, b.PriorTable); c != 0 {
		return c
	}
	return compareLmActionTables(a.LmActionTable, b.LmActionTable)
}

// compareTransDataPtr compares payloads where either pointer may be nil; nil
// (error transition) sorts first.
func compareTransDataPtr(a, b *TransData) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareTransData(a, b)
}

// compareFullData compares payloads including the target state.
func compareFullData(a, b *TransData) int {
	if c := compareTransDataPtr(a, b); c != 0 {
		return c
	}
	if a == nil {
		return 0
	}
	return compareStatePtr(a.ToState, b.ToState)
}

func compareStatePtr(a, b *State) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.id < b.id:
		return -1
	default:
		return 1
	}
}

// compareCondShape compares the condition structure of two transitions: the
// space, then the branch keys.
func compareCondShape(a, b *Trans) int {
	as, bs := -1, -1
	if a.CondSpace != nil {
		as = a.CondSpace.SpaceID
	}
	if b.CondSpace != nil {
		bs = b.CondSpace.SpaceID
	}
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	if len(a.Conds) != len(b.Conds) {
		if len(a.Conds) < len(b.Conds) {
			return -1
		}
		return 1
	}
	for i := range a.Conds {
		if a.Conds[i].Key != b.Conds[i].Key {
			if a.Conds[i].Key < b.Conds[i].Key {
				return -1
			}
			return 1
		}
	}
	return 0
}
