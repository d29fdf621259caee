package fsm

import "sort"

// Basic machine constructors. Each returns a fresh graph over the context.

// EmptyFsm accepts nothing: a lone non-final start state.
func EmptyFsm(ctx *Ctx) (*Fsm, error) {
	g := NewFsm(ctx)
	s, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.SetStartState(s)
	return g, nil
}

// LambdaFsm accepts only the empty word.
func LambdaFsm(ctx *Ctx) (*Fsm, error) {
	g := NewFsm(ctx)
	s, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.SetStartState(s)
	g.SetFinState(s)
	return g, nil
}

// KeyFsm accepts the single key c.
func KeyFsm(ctx *Ctx, c Key) (*Fsm, error) {
	g := NewFsm(ctx)
	start, err := g.addState()
	if err != nil {
		return nil, err
	}
	end, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.attachNewTrans(start, end, c, c)
	g.SetStartState(start)
	g.SetFinState(end)
	return g, nil
}

// StringFsm accepts exactly the given key sequence.
func StringFsm(ctx *Ctx, str []Key) (*Fsm, error) {
	g := NewFsm(ctx)
	cur, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.SetStartState(cur)
	for _, c := range str {
		next, err := g.addState()
		if err != nil {
			return nil, err
		}
		g.attachNewTrans(cur, next, c, c)
		cur = next
	}
	g.SetFinState(cur)
	return g, nil
}

// StringFsmCI accepts the key sequence with letters matched in either case.
// Folding applies to keys in the host character range only.
func StringFsmCI(ctx *Ctx, str []Key) (*Fsm, error) {
	g := NewFsm(ctx)
	cur, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.SetStartState(cur)
	for _, c := range str {
		next, err := g.addState()
		if err != nil {
			return nil, err
		}
		lower, upper := foldKey(c)
		g.attachNewTrans(cur, next, lower, lower)
		if upper != lower {
			g.attachNewTrans(cur, next, upper, upper)
		}
		cur = next
	}
	g.SetFinState(cur)
	return g, nil
}

func foldKey(c Key) (lower, upper Key) {
	switch {
	case c >= 'a' && c <= 'z':
		return c, c - 'a' + 'A'
	case c >= 'A' && c <= 'Z':
		return c - 'A' + 'a', c
	default:
		return c, c
	}
}

// OrFsm accepts any one key from the set.
func OrFsm(ctx *Ctx, set []Key) (*Fsm, error) {
	g := NewFsm(ctx)
	start, err := g.addState()
	if err != nil {
		return nil, err
	}
	end, err := g.addState()
	if err != nil {
		return nil, err
	}
	keys := append([]Key(nil), set...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for i, c := range keys {
		if i > 0 && keys[i-1] == c {
			continue
		}
		g.attachNewTrans(start, end, c, c)
	}
	g.SetStartState(start)
	g.SetFinState(end)
	return g, nil
}

// RangeFsm accepts any single key in [lo, hi].
func RangeFsm(ctx *Ctx, lo, hi Key) (*Fsm, error) {
	g := NewFsm(ctx)
	start, err := g.addState()
	if err != nil {
		return nil, err
	}
	end, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.attachNewTrans(start, end, lo, hi)
	g.SetStartState(start)
	g.SetFinState(end)
	return g, nil
}

// RangeStarFsm accepts any word over [lo, hi], the empty word included.
func RangeStarFsm(ctx *Ctx, lo, hi Key) (*Fsm, error) {
	g := NewFsm(ctx)
	s, err := g.addState()
	if err != nil {
		return nil, err
	}
	g.attachNewTrans(s, s, lo, hi)
	g.SetStartState(s)
	g.SetFinState(s)
	return g, nil
}
