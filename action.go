package fsm

import (
	"fmt"
	"sort"
)

// Action is a named side effect referenced by transitions and states.
// Identity is the name; the reference counters track how many places in the
// final machine embed it, broken down by embedding kind.
type Action struct {
	Name      string
	ID        int
	InputLine int
	InputCol  int

	// CondID orders condition actions inside a condition set. Negative for
	// actions that are not conditions.
	CondID int

	// Cost accounting for condition duplication during merges.
	CostMark bool
	CostID   int

	// Reference counts, maintained by attach/detach only.
	NumTransRefs     int
	NumToStateRefs   int
	NumFromStateRefs int
	NumEofRefs       int
	NumCondRefs      int
	NumNfaPopRefs    int
}

// NewAction creates an action that is not a condition.
func NewAction(name string, id int) *Action {
	return &Action{Name: name, ID: id, CondID: -1}
}

// NewCondAction creates a condition action. CondID gives its position when
// collected into a condition set.
func NewCondAction(name string, id, condID int) *Action {
	return &Action{Name: name, ID: id, CondID: condID}
}

// NumRefs is the total embed count in the final machine, conditions excluded.
func (a *Action) NumRefs() int {
	return a.NumTransRefs + a.NumToStateRefs + a.NumFromStateRefs +
		a.NumEofRefs + a.NumNfaPopRefs
}

// DisplayName returns the action name, or line:col of the defining input
// location for anonymous actions.
func (a *Action) DisplayName() string {
	if a.Name == "" {
		return fmt.Sprintf("%d:%d", a.InputLine, a.InputCol)
	}
	return a.Name
}

// ActionTableEl pairs an embedding ordering with the embedded action.
type ActionTableEl struct {
	Ordering int
	Action   *Action
}

// ActionTable is an ordered mapping from embedding ordering to action.
// Orderings are unique among instantiations of machines, so merging two
// tables by ordering preserves the author's embedding sequence.
type ActionTable []ActionTableEl

// SetAction inserts an action at the given ordering.
func (t *ActionTable) SetAction(ordering int, action *Action) {
	i := sort.Search(len(*t), func(i int) bool { return (*t)[i].Ordering >= ordering })
	if i < len(*t) && (*t)[i].Ordering == ordering && (*t)[i].Action == action {
		return
	}
	*t = append(*t, ActionTableEl{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = ActionTableEl{Ordering: ordering, Action: action}
}

// SetActions merges another table in by ordering.
func (t *ActionTable) SetActions(other ActionTable) {
	for _, el := range other {
		t.SetAction(el.Ordering, el.Action)
	}
}

// Has reports whether the table embeds the action at any ordering.
func (t ActionTable) Has(action *Action) bool {
	for _, el := range t {
		if el.Action == action {
			return true
		}
	}
	return false
}

// Equal is structural equality: same orderings, same actions.
func (t ActionTable) Equal(other ActionTable) bool {
	return compareActionTables(t, other) == 0
}

func compareActionTables(a, b ActionTable) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i].Ordering != b[i].Ordering {
			if a[i].Ordering < b[i].Ordering {
				return -1
			}
			return 1
		}
		if a[i].Action != b[i].Action {
			if a[i].Action.ID < b[i].Action.ID {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t ActionTable) clone() ActionTable {
	if t == nil {
		return nil
	}
	c := make(ActionTable, len(t))
	copy(c, t)
	return c
}

// LmPart identifies one alternative of a longest-match construction.
type LmPart struct {
	Name string
	ID   int
}

// LmActionTableEl pairs an ordering with a longest-match part.
type LmActionTableEl struct {
	Ordering int
	Part     *LmPart
}

// LmActionTable is the ordered table of longest-match actions. It follows
// the same merge-by-ordering contract as ActionTable.
type LmActionTable []LmActionTableEl

// SetAction inserts a longest-match part at the given ordering.
func (t *LmActionTable) SetAction(ordering int, part *LmPart) {
	i := sort.Search(len(*t), func(i int) bool { return (*t)[i].Ordering >= ordering })
	if i < len(*t) && (*t)[i].Ordering == ordering && (*t)[i].Part == part {
		return
	}
	*t = append(*t, LmActionTableEl{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = LmActionTableEl{Ordering: ordering, Part: part}
}

// SetActions merges another table in by ordering.
func (t *LmActionTable) SetActions(other LmActionTable) {
	for _, el := range other {
		t.SetAction(el.Ordering, el.Part)
	}
}

func compareLmActionTables(a, b LmActionTable) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i].Ordering != b[i].Ordering {
			if a[i].Ordering < b[i].Ordering {
				return -1
			}
			return 1
		}
		if a[i].Part != b[i].Part {
			if a[i].Part.ID < b[i].Part.ID {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t LmActionTable) clone() LmActionTable {
	if t == nil {
		return nil
	}
	c := make(LmActionTable, len(t))
	copy(c, t)
	return c
}

// Transfer points encode where error actions migrate when the machine is
// finalized.
const (
	TransferStartPt = iota
	TransferAllPt
	TransferFinalPt
	TransferMiddlePt
)

// ErrActionTableEl adds the transfer point to an ordered action embedding.
type ErrActionTableEl struct {
	Ordering      int
	Action        *Action
	TransferPoint int
}

// ErrActionTable is the ordered table of error actions.
type ErrActionTable []ErrActionTableEl

// SetAction inserts an error action at the given ordering.
func (t *ErrActionTable) SetAction(ordering int, action *Action, transferPoint int) {
	i := sort.Search(len(*t), func(i int) bool { return (*t)[i].Ordering >= ordering })
	if i < len(*t) && (*t)[i].Ordering == ordering &&
		(*t)[i].Action == action && (*t)[i].TransferPoint == transferPoint {
		return
	}
	*t = append(*t, ErrActionTableEl{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = ErrActionTableEl{Ordering: ordering, Action: action, TransferPoint: transferPoint}
}

// SetActions merges another table in by ordering.
func (t *ErrActionTable) SetActions(other ErrActionTable) {
	for _, el := range other {
		t.SetAction(el.Ordering, el.Action, el.TransferPoint)
	}
}

func compareErrActionTables(a, b ErrActionTable) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i].Ordering != b[i].Ordering {
			if a[i].Ordering < b[i].Ordering {
				return -1
			}
			return 1
		}
		if a[i].Action != b[i].Action {
			if a[i].Action.ID < b[i].Action.ID {
				return -1
			}
			return 1
		}
		if a[i].TransferPoint != b[i].TransferPoint {
			if a[i].TransferPoint < b[i].TransferPoint {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t ErrActionTable) clone() ErrActionTable {
	if t == nil {
		return nil
	}
	c := make(ErrActionTable, len(t))
	copy(c, t)
	return c
}

// PriorDesc is the identity object under which two priorities compete.
// Priorities with different descriptors are independent; when two with the
// same key meet, the larger value wins and equal values are a conflict.
type PriorDesc struct {
	Key      int
	Priority int
	GuardID  int
}

// PriorEl is one priority assignment. Ordering is unique among machine
// instantiations; the descriptor is shared.
type PriorEl struct {
	Ordering int
	Desc     *PriorDesc
}

// PriorTable is a set of priority assignments sorted by descriptor key.
type PriorTable []PriorEl

// SetPrior inserts a priority assignment, keyed by the descriptor key.
func (t *PriorTable) SetPrior(ordering int, desc *PriorDesc) {
	i := sort.Search(len(*t), func(i int) bool {
		if (*t)[i].Desc.Key != desc.Key {
			return (*t)[i].Desc.Key > desc.Key
		}
		return (*t)[i].Ordering >= ordering
	})
	if i < len(*t) && (*t)[i].Desc == desc && (*t)[i].Ordering == ordering {
		return
	}
	*t = append(*t, PriorEl{})
	copy((*t)[i+1:], (*t)[i:])
	(*t)[i] = PriorEl{Ordering: ordering, Desc: desc}
}

// SetPriors unions another table in.
func (t *PriorTable) SetPriors(other PriorTable) {
	for _, el := range other {
		t.SetPrior(el.Ordering, el.Desc)
	}
}

func comparePriorTables(a, b PriorTable) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i].Desc != b[i].Desc {
			if a[i].Desc.Key != b[i].Desc.Key {
				if a[i].Desc.Key < b[i].Desc.Key {
					return -1
				}
				return 1
			}
			if a[i].Desc.Priority < b[i].Desc.Priority {
				return -1
			}
			if a[i].Desc.Priority > b[i].Desc.Priority {
				return 1
			}
		}
		if a[i].Ordering != b[i].Ordering {
			if a[i].Ordering < b[i].Ordering {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (t PriorTable) clone() PriorTable {
	if t == nil {
		return nil
	}
	c := make(PriorTable, len(t))
	copy(c, t)
	return c
}

// comparePrior resolves the relative priority of two tables. Tables are
// walked by descriptor key; the first key present in both decides: the side
// with the larger priority value wins (positive when left wins). Equal
// values under distinct descriptors are a priority interaction.
func comparePrior(left, right PriorTable) (int, error) {
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch {
		case left[i].Desc.Key < right[j].Desc.Key:
			i++
		case right[j].Desc.Key < left[i].Desc.Key:
			j++
		default:
			lp, rp := left[i].Desc.Priority, right[j].Desc.Priority
			if lp > rp {
				return 1, nil
			}
			if lp < rp {
				return -1, nil
			}
			if left[i].Desc != right[j].Desc {
				return 0, &PriorInteractionError{ID: left[i].Desc.Key}
			}
			i++
			j++
		}
	}
	return 0, nil
}
