package fsm

import (
	"sort"
	"testing"
)

// Test helpers: context construction, word simulation and bounded language
// enumeration. The simulator only follows plain transitions; tests that use
// conditions inspect the structure instead.

func testCtx(opts ...Options) *Ctx {
	return NewCtx(AsciiKeyOps(), opts...)
}

func noMinCtx() *Ctx {
	opts := DefaultOptions()
	opts.MinimizeLevel = MinimizeNone
	return NewCtx(AsciiKeyOps(), opts)
}

func keys(s string) []Key {
	out := make([]Key, 0, len(s))
	for i := 0; i < len(s); i++ {
		out = append(out, Key(s[i]))
	}
	return out
}

func findTrans(s *State, k Key) *Trans {
	for _, t := range s.outList {
		if k >= t.Low && k <= t.High {
			return t
		}
	}
	return nil
}

func accepts(g *Fsm, word string) bool {
	s := g.startState
	if s == nil {
		return false
	}
	for i := 0; i < len(word); i++ {
		t := findTrans(s, Key(word[i]))
		if t == nil || !t.Plain() || t.Data.ToState == nil {
			return false
		}
		s = t.Data.ToState
	}
	return s.IsFinal()
}

// language enumerates every accepted word over the alphabet up to maxLen.
func language(g *Fsm, alphabet string, maxLen int) []string {
	var out []string
	var walk func(prefix string)
	walk = func(prefix string) {
		if accepts(g, prefix) {
			out = append(out, prefix)
		}
		if len(prefix) == maxLen {
			return
		}
		for i := 0; i < len(alphabet); i++ {
			walk(prefix + string(alphabet[i]))
		}
	}
	walk("")
	sort.Strings(out)
	return out
}

func mustFsm(t *testing.T, g *Fsm, err error) *Fsm {
	t.Helper()
	if err != nil {
		t.Fatalf("build machine: %v", err)
	}
	return g
}

func mustOp(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
}

func stateCount(g *Fsm) int {
	return g.stateList.length
}

func checkIntegrity(t *testing.T, g *Fsm) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("integrity: %v", r)
		}
	}()
	g.verifyIntegrity()
	g.verifyStates()
}
