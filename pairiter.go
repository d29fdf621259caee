package fsm

// PairClass is the caller-visible classification of a range pair event.
type PairClass int

const (
	// RangeInS1 and RangeInS2 cover a window present on one side only.
	RangeInS1 PairClass = iota
	RangeInS2
	// RangeOverlap covers a window present on both sides.
	RangeOverlap
	// BreakS1 and BreakS2 announce that the named side's range is about to
	// be split. The caller gets a chance to duplicate carried data before
	// the prefix is consumed.
	BreakS1
	BreakS2
)

// iterState encodes the resumption point of the iterator.
type iterState int

const (
	itBegin iterState = iota
	itConsumeS1
	itConsumeS2
	itOnlyInS1
	itOnlyInS2
	itS1SticksOut
	itS1SticksOutBreak
	itS2SticksOut
	itS2SticksOutBreak
	itS1DragsBehind
	itS1DragsBehindBreak
	itS2DragsBehind
	itS2DragsBehindBreak
	itExactOverlap
	itEnd
)

// pairCursor tracks one side of the walk: the current transition and its
// window, which shrinks as ranges are broken.
type pairCursor struct {
	low, high Key
	trans     *Trans
	list      []*Trans
	idx       int
}

func (c *pairCursor) load() {
	if c.idx >= len(c.list) {
		c.trans = nil
		return
	}
	c.trans = c.list[c.idx]
	c.low = c.trans.Low
	c.high = c.trans.High
}

func (c *pairCursor) end() bool { return c.trans == nil }

func (c *pairCursor) increment() {
	c.idx++
	c.load()
}

// RangePairIter walks two range-sorted transition lists in key order,
// emitting the pointwise relationship of their ranges. It is an explicit
// state machine equivalent of a co-routine: Next resumes in place. The
// iterator is invalidated by structural modification of either list.
type RangePairIter struct {
	ops *KeyOps

	s1, s2 pairCursor
	state  iterState

	// Class is the classification of the current event; S1 and S2 expose
	// the current windows after every event.
	Class PairClass

	bottomLow, bottomHigh Key
	bottomTrans1          *Trans
	bottomTrans2          *Trans
}

// NewRangePairIter starts a walk over the two lists. Call Next to position
// on the first event.
func NewRangePairIter(ops *KeyOps, list1, list2 []*Trans) *RangePairIter {
	it := &RangePairIter{ops: ops, state: itBegin}
	it.s1.list = list1
	it.s2.list = list2
	return it
}

// S1 returns the current window on the first list. Valid for RangeInS1,
// RangeOverlap and BreakS1 events.
func (it *RangePairIter) S1() (lo, hi Key, t *Trans) { return it.s1.low, it.s1.high, it.s1.trans }

// S2 returns the current window on the second list.
func (it *RangePairIter) S2() (lo, hi Key, t *Trans) { return it.s2.low, it.s2.high, it.s2.trans }

// Next advances to the next event. It returns false when the walk is done.
func (it *RangePairIter) Next() bool {
	ops := it.ops
	switch it.state {
	case itBegin:
		it.s1.idx, it.s2.idx = 0, 0
		it.s1.load()
		it.s2.load()
	case itConsumeS1:
		it.s1.increment()
	case itConsumeS2:
		it.s2.increment()
	case itOnlyInS1:
		it.s1.increment()
	case itOnlyInS2:
		it.s2.increment()
	case itS1SticksOutBreak:
		// Broken off prefix is only in s1.
		it.state = itS1SticksOut
		it.Class = RangeInS1
		return true
	case itS1SticksOut:
		// Advance over the part sticking out front.
		it.s1.low = it.bottomLow
		it.s1.high = it.bottomHigh
		it.s1.trans = it.bottomTrans1
	case itS2SticksOutBreak:
		it.state = itS2SticksOut
		it.Class = RangeInS2
		return true
	case itS2SticksOut:
		it.s2.low = it.bottomLow
		it.s2.high = it.bottomHigh
		it.s2.trans = it.bottomTrans2
	case itS2DragsBehindBreak:
		// Breaking s2 produces exact overlap.
		it.state = itS2DragsBehind
		it.Class = RangeOverlap
		return true
	case itS2DragsBehind:
		it.s2.low = it.bottomLow
		it.s2.high = it.bottomHigh
		it.s2.trans = it.bottomTrans2
		it.s1.increment()
	case itS1DragsBehindBreak:
		it.state = itS1DragsBehind
		it.Class = RangeOverlap
		return true
	case itS1DragsBehind:
		it.s1.low = it.bottomLow
		it.s1.high = it.bottomHigh
		it.s1.trans = it.bottomTrans1
		it.s2.increment()
	case itExactOverlap:
		it.s1.increment()
		it.s2.increment()
	case itEnd:
		return false
	}

	// Concurrently scan both out ranges.
	for {
		switch {
		case it.s1.end() && it.s2.end():
			it.state = itEnd
			return false

		case it.s1.end():
			// At the end of list one; the rest of list two is alone.
			it.state = itConsumeS2
			it.Class = RangeInS2
			return true

		case it.s2.end():
			it.state = itConsumeS1
			it.Class = RangeInS1
			return true

		// The signature of no overlap is a back key in front of a front key.
		case ops.Lt(it.s1.high, it.s2.low):
			it.state = itOnlyInS1
			it.Class = RangeInS1
			return true

		case ops.Lt(it.s2.high, it.s1.low):
			it.state = itOnlyInS2
			it.Class = RangeInS2
			return true

		// Overlap; mix the ranges.
		case ops.Lt(it.s1.low, it.s2.low):
			// Range from s1 sticks out front. Break it into a non-overlap
			// prefix and an overlap suffix.
			it.bottomLow = it.s2.low
			it.bottomHigh = it.s1.high
			it.s1.high, _ = ops.Decrement(it.s2.low)
			it.bottomTrans1 = it.s1.trans
			it.state = itS1SticksOutBreak
			it.Class = BreakS1
			return true

		case ops.Lt(it.s2.low, it.s1.low):
			it.bottomLow = it.s1.low
			it.bottomHigh = it.s2.high
			it.s2.high, _ = ops.Decrement(it.s1.low)
			it.bottomTrans2 = it.s2.trans
			it.state = itS2SticksOutBreak
			it.Class = BreakS2
			return true

		// Low ends are even. Are the high ends even?
		case ops.Lt(it.s1.high, it.s2.high):
			// Range from s2 runs longer; break it into the evenly
			// overlapping prefix and the remainder.
			it.bottomLow, _ = ops.Increment(it.s1.high)
			it.bottomHigh = it.s2.high
			it.s2.high = it.s1.high
			it.bottomTrans2 = it.s2.trans
			it.state = itS2DragsBehindBreak
			it.Class = BreakS2
			return true

		case ops.Lt(it.s2.high, it.s1.high):
			it.bottomLow, _ = ops.Increment(it.s2.high)
			it.bottomHigh = it.s1.high
			it.s1.high = it.s2.high
			it.bottomTrans1 = it.s1.trans
			it.state = itS1DragsBehindBreak
			it.Class = BreakS1
			return true

		default:
			it.state = itExactOverlap
			it.Class = RangeOverlap
			return true
		}
	}
}

// ValClass classifies a value pair event.
type ValClass int

const (
	ValInS1 ValClass = iota
	ValInS2
	ValOverlap
)

// ValPairIter is the point-keyed variant of the range walk, used on the
// condition branch lists inside conditional transitions.
type ValPairIter struct {
	list1, list2 []*CondBranch
	i, j         int
	started      bool

	Class ValClass
	B1    *CondBranch
	B2    *CondBranch
}

// NewValPairIter starts a walk over two branch lists ordered by condition
// key.
func NewValPairIter(list1, list2 []*CondBranch) *ValPairIter {
	return &ValPairIter{list1: list1, list2: list2}
}

// Next advances to the next event; false when done.
func (it *ValPairIter) Next() bool {
	if it.started {
		switch it.Class {
		case ValInS1:
			it.i++
		case ValInS2:
			it.j++
		case ValOverlap:
			it.i++
			it.j++
		}
	}
	it.started = true
	it.B1, it.B2 = nil, nil

	switch {
	case it.i >= len(it.list1) && it.j >= len(it.list2):
		return false
	case it.i >= len(it.list1):
		it.Class = ValInS2
		it.B2 = it.list2[it.j]
	case it.j >= len(it.list2):
		it.Class = ValInS1
		it.B1 = it.list1[it.i]
	case it.list1[it.i].Key < it.list2[it.j].Key:
		it.Class = ValInS1
		it.B1 = it.list1[it.i]
	case it.list2[it.j].Key < it.list1[it.i].Key:
		it.Class = ValInS2
		it.B2 = it.list2[it.j]
	default:
		it.Class = ValOverlap
		it.B1 = it.list1[it.i]
		it.B2 = it.list2[it.j]
	}
	return true
}
