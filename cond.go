package fsm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// CondKey is a concrete assignment of the guards in a condition space: bit i
// of the value corresponds to position i in the space's condition set.
type CondKey int64

// CondSet is a set of condition actions, kept sorted by CondID. Condition
// spaces are interned on this set.
type CondSet []*Action

// NewCondSet builds a sorted condition set from the given actions.
func NewCondSet(conds ...*Action) CondSet {
	set := make(CondSet, 0, len(conds))
	for _, c := range conds {
		set = set.Insert(c)
	}
	return set
}

// Insert returns the set with the condition added, keeping CondID order.
func (s CondSet) Insert(cond *Action) CondSet {
	i := sort.Search(len(s), func(i int) bool { return s[i].CondID >= cond.CondID })
	if i < len(s) && s[i] == cond {
		return s
	}
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = cond
	return s
}

// Pos returns the bit position of the condition within the set, or -1.
func (s CondSet) Pos(cond *Action) int {
	for i, c := range s {
		if c == cond {
			return i
		}
	}
	return -1
}

// Union returns the union of two condition sets.
func (s CondSet) Union(other CondSet) CondSet {
	out := make(CondSet, len(s))
	copy(out, s)
	for _, c := range other {
		out = out.Insert(c)
	}
	return out
}

func (s CondSet) key() string {
	var b strings.Builder
	for i, c := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c.CondID))
	}
	return b.String()
}

// CondSpace is an interned set of boolean guards attached to transitions.
// Spaces live in the per-context map and outlive the machines that reference
// them within the context's lifetime.
type CondSpace struct {
	CondSet CondSet
	SpaceID int
}

// FullSize is the number of concrete condition values: 2^n for n guards.
func (cs *CondSpace) FullSize() int { return 1 << len(cs.CondSet) }

// condData is the per-context interning map for condition spaces.
type condData struct {
	spaces map[string]*CondSpace
	nextID int
}

func newCondData() *condData {
	return &condData{spaces: make(map[string]*CondSpace)}
}

// addCondSpace returns the canonical space for the guard set, creating it on
// first use.
func (cd *condData) addCondSpace(set CondSet) *CondSpace {
	if len(set) == 0 {
		return nil
	}
	k := set.key()
	if cs, ok := cd.spaces[k]; ok {
		return cs
	}
	cs := &CondSpace{CondSet: set, SpaceID: cd.nextID}
	cd.nextID++
	cd.spaces[k] = cs
	return cs
}

// expandCondKey recomputes a condition value when its space grows from "from"
// to "to": bits of conditions present in both spaces carry over, and "fill"
// supplies the assignment for each condition new in "to".
func expandCondKey(val CondKey, from, to *CondSpace, fill CondKey) CondKey {
	var out CondKey
	fillPos := 0
	for i, cond := range to.CondSet {
		if from != nil {
			if p := from.CondSet.Pos(cond); p >= 0 {
				if val&(1<<p) != 0 {
					out |= 1 << i
				}
				continue
			}
		}
		if fill&(1<<fillPos) != 0 {
			out |= 1 << i
		}
		fillPos++
	}
	return out
}

// missingCondCount is the number of conditions in "to" absent from "from".
func missingCondCount(from, to *CondSpace) int {
	n := 0
	for _, cond := range to.CondSet {
		if from == nil || from.CondSet.Pos(cond) < 0 {
			n++
		}
	}
	return n
}

// condValSet is a set of condition values inside one space, bitset backed so
// the Cartesian expansion of merged spaces stays cheap to union and walk.
type condValSet struct {
	bits *bitset.BitSet
}

func newCondValSet(space *CondSpace) *condValSet {
	size := uint(2)
	if space != nil {
		size = uint(space.FullSize())
	}
	return &condValSet{bits: bitset.New(size)}
}

func (v *condValSet) set(key CondKey)     { v.bits.Set(uint(key)) }
func (v *condValSet) has(key CondKey) bool { return v.bits.Test(uint(key)) }
func (v *condValSet) size() int           { return int(v.bits.Count()) }
func (v *condValSet) union(o *condValSet) { v.bits.InPlaceUnion(o.bits) }
func (v *condValSet) clone() *condValSet  { return &condValSet{bits: v.bits.Clone()} }

// keys returns the member values in increasing order.
func (v *condValSet) keys() []CondKey {
	out := make([]CondKey, 0, v.bits.Count())
	for i, ok := v.bits.NextSet(0); ok; i, ok = v.bits.NextSet(i + 1) {
		out = append(out, CondKey(i))
	}
	return out
}

// expand rewrites the value set for a grown space, replicating every member
// across all assignments of the bits new in the merged space.
func (v *condValSet) expand(from, to *CondSpace) *condValSet {
	missing := missingCondCount(from, to)
	out := newCondValSet(to)
	for _, key := range v.keys() {
		for fill := CondKey(0); fill < 1<<missing; fill++ {
			out.set(expandCondKey(key, from, to, fill))
		}
	}
	return out
}
