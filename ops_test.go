package fsm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Scenario: the literal "ab" is three states and survives minimization
// unchanged.
func TestLiteralAB(t *testing.T) {
	fsmVal21, fsmErr21 := StringFsm(testCtx(), keys("ab"))
	g := mustFsm(t, fsmVal21, fsmErr21)
	if !accepts(g, "ab") {
		t.Error("must accept ab")
	}
	for _, w := range []string{"", "a", "b", "ba", "abc"} {
		if accepts(g, w) {
			t.Errorf("must reject %q", w)
		}
	}
	if stateCount(g) != 3 {
		t.Errorf("state count = %d, want 3", stateCount(g))
	}
	g.Minimize()
	if stateCount(g) != 3 {
		t.Errorf("state count after minimize = %d, want 3", stateCount(g))
	}
	checkIntegrity(t, g)
}

// Scenario: union of two letter ranges is two states with two separate
// transitions that stay apart through compression.
func TestUnionRanges(t *testing.T) {
	ctx := testCtx()
	fsmVal22, fsmErr22 := RangeFsm(ctx, 'a', 'z')
	g := mustFsm(t, fsmVal22, fsmErr22)
	fsmVal23, fsmErr23 := RangeFsm(ctx, 'A', 'Z')
	o := mustFsm(t, fsmVal23, fsmErr23)
	mustOp(t, g.UnionOp(o))

	if stateCount(g) != 2 {
		t.Fatalf("state count = %d, want 2", stateCount(g))
	}
	start := g.startState
	if len(start.outList) != 2 {
		t.Fatalf("start out list = %d transitions, want 2", len(start.outList))
	}
	if start.outList[0].Low != 'A' || start.outList[0].High != 'Z' {
		t.Errorf("first range = [%c..%c]", start.outList[0].Low, start.outList[0].High)
	}
	if start.outList[1].Low != 'a' || start.outList[1].High != 'z' {
		t.Errorf("second range = [%c..%c]", start.outList[1].Low, start.outList[1].High)
	}
	if start.outList[0].Data.ToState != start.outList[1].Data.ToState {
		t.Error("both ranges must share the final state")
	}
	g.compressTransitions()
	if len(start.outList) != 2 {
		t.Error("non-adjacent ranges must not coalesce")
	}
	for _, w := range []string{"a", "q", "z", "A", "Q", "Z"} {
		if !accepts(g, w) {
			t.Errorf("must accept %q", w)
		}
	}
	for _, w := range []string{"", "0", "aa"} {
		if accepts(g, w) {
			t.Errorf("must reject %q", w)
		}
	}
	checkIntegrity(t, g)
}

// Scenario: digits followed by a star of digits.
func TestConcatDigitsStar(t *testing.T) {
	ctx := testCtx()
	fsmVal24, fsmErr24 := RangeFsm(ctx, '0', '9')
	g := mustFsm(t, fsmVal24, fsmErr24)
	fsmVal25, fsmErr25 := RangeFsm(ctx, '0', '9')
	o := mustFsm(t, fsmVal25, fsmErr25)
	mustOp(t, o.StarOp())
	mustOp(t, g.ConcatOp(o))

	for _, w := range []string{"0", "42", "007"} {
		if !accepts(g, w) {
			t.Errorf("must accept %q", w)
		}
	}
	for _, w := range []string{"", "a", "4a"} {
		if accepts(g, w) {
			t.Errorf("must reject %q", w)
		}
	}
	checkIntegrity(t, g)
}

// Scenario: intersection of overlapping ranges leaves the common range.
func TestIntersectRanges(t *testing.T) {
	ctx := testCtx()
	fsmVal26, fsmErr26 := RangeFsm(ctx, 'a', 'z')
	g := mustFsm(t, fsmVal26, fsmErr26)
	fsmVal27, fsmErr27 := RangeFsm(ctx, 'm', 'p')
	o := mustFsm(t, fsmVal27, fsmErr27)
	mustOp(t, g.IntersectOp(o))

	start := g.startState
	if len(start.outList) != 1 {
		t.Fatalf("start out list = %d transitions, want 1", len(start.outList))
	}
	if start.outList[0].Low != 'm' || start.outList[0].High != 'p' {
		t.Errorf("range = [%c..%c], want [m..p]", start.outList[0].Low, start.outList[0].High)
	}
	if to := start.outList[0].Data.ToState; to == nil || !to.IsFinal() {
		t.Error("transition must lead to a final state")
	}
	for _, w := range []string{"m", "n", "p"} {
		if !accepts(g, w) {
			t.Errorf("must accept %q", w)
		}
	}
	for _, w := range []string{"a", "l", "q", "z", ""} {
		if accepts(g, w) {
			t.Errorf("must reject %q", w)
		}
	}
	checkIntegrity(t, g)
}

func TestIntersectSelf(t *testing.T) {
	ctx := testCtx()
	fsmVal28, fsmErr28 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal28, fsmErr28)
	fsmVal29, fsmErr29 := StringFsm(ctx, keys("ab"))
	o := mustFsm(t, fsmVal29, fsmErr29)
	mustOp(t, g.IntersectOp(o))
	want := []string{"ab"}
	if diff := cmp.Diff(want, language(g, "ab", 3)); diff != "" {
		t.Errorf("language mismatch (-want +got):\n%s", diff)
	}
}

func TestSubtractSelf(t *testing.T) {
	ctx := testCtx()
	fsmVal30, fsmErr30 := RangeFsm(ctx, 'a', 'c')
	g := mustFsm(t, fsmVal30, fsmErr30)
	fsmVal31, fsmErr31 := RangeFsm(ctx, 'a', 'c')
	o := mustFsm(t, fsmVal31, fsmErr31)
	mustOp(t, g.SubtractOp(o))
	if !g.IsFinStateSetEmpty() {
		t.Error("A minus A accepts nothing")
	}
	if got := language(g, "abc", 2); len(got) != 0 {
		t.Errorf("language = %v, want empty", got)
	}
}

func TestSubtract(t *testing.T) {
	ctx := testCtx()
	fsmVal32, fsmErr32 := RangeFsm(ctx, 'a', 'z')
	g := mustFsm(t, fsmVal32, fsmErr32)
	fsmVal33, fsmErr33 := RangeFsm(ctx, 'm', 'p')
	o := mustFsm(t, fsmVal33, fsmErr33)
	mustOp(t, g.SubtractOp(o))
	for _, w := range []string{"a", "l", "q", "z"} {
		if !accepts(g, w) {
			t.Errorf("must accept %q", w)
		}
	}
	for _, w := range []string{"m", "n", "o", "p", ""} {
		if accepts(g, w) {
			t.Errorf("must reject %q", w)
		}
	}
}

func TestUnionCommutative(t *testing.T) {
	build := func(first, second string) *Fsm {
		ctx := testCtx()
		fsmVal34, fsmErr34 := StringFsm(ctx, keys(first))
		g := mustFsm(t, fsmVal34, fsmErr34)
		fsmVal35, fsmErr35 := StringFsm(ctx, keys(second))
		o := mustFsm(t, fsmVal35, fsmErr35)
		mustOp(t, g.UnionOp(o))
		return g
	}
	ab := build("ab", "ba")
	ba := build("ba", "ab")
	if diff := cmp.Diff(language(ab, "ab", 3), language(ba, "ab", 3)); diff != "" {
		t.Errorf("languages differ (-ab+ba):\n%s", diff)
	}
}

func TestConcatLambdaIdentity(t *testing.T) {
	ctx := testCtx()
	want := []string{"ab"}

	t.Run("lambda on the left", func(t *testing.T) {
		fsmVal36, fsmErr36 := LambdaFsm(ctx)
		g := mustFsm(t, fsmVal36, fsmErr36)
		fsmVal37, fsmErr37 := StringFsm(ctx, keys("ab"))
		o := mustFsm(t, fsmVal37, fsmErr37)
		mustOp(t, g.ConcatOp(o))
		if diff := cmp.Diff(want, language(g, "ab", 3)); diff != "" {
			t.Errorf("language mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("lambda on the right", func(t *testing.T) {
		fsmVal38, fsmErr38 := StringFsm(ctx, keys("ab"))
		g := mustFsm(t, fsmVal38, fsmErr38)
		fsmVal39, fsmErr39 := LambdaFsm(ctx)
		o := mustFsm(t, fsmVal39, fsmErr39)
		mustOp(t, g.ConcatOp(o))
		if diff := cmp.Diff(want, language(g, "ab", 3)); diff != "" {
			t.Errorf("language mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestMinimizeIdempotent(t *testing.T) {
	ctx := noMinCtx()
	fsmVal40, fsmErr40 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal40, fsmErr40)
	fsmVal41, fsmErr41 := StringFsm(ctx, keys("ac"))
	o := mustFsm(t, fsmVal41, fsmErr41)
	mustOp(t, g.UnionOp(o))
	g.Minimize()
	first := stateCount(g)
	g.Minimize()
	if got := stateCount(g); got != first {
		t.Errorf("second minimize changed state count: %d -> %d", first, got)
	}
}

// Re-running the determinization machinery on a machine that is already
// deterministic must not change the state count.
func TestDeterminizeFixedPoint(t *testing.T) {
	ctx := testCtx()
	fsmVal42, fsmErr42 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal42, fsmErr42)
	fsmVal43, fsmErr43 := StringFsm(ctx, keys("cd"))
	o := mustFsm(t, fsmVal43, fsmErr43)
	mustOp(t, g.UnionOp(o))
	before := stateCount(g)
	mustOp(t, g.DeterministicEntry())
	if got := stateCount(g); got != before {
		t.Errorf("state count changed: %d -> %d", before, got)
	}
}

// Scenario: equal priorities under distinct descriptors collide in union.
func TestPriorityConflict(t *testing.T) {
	ctx := testCtx()
	fsmVal44, fsmErr44 := KeyFsm(ctx, 'a')
	g := mustFsm(t, fsmVal44, fsmErr44)
	fsmVal45, fsmErr45 := KeyFsm(ctx, 'a')
	o := mustFsm(t, fsmVal45, fsmErr45)
	g.StartFsmPrior(0, &PriorDesc{Key: 7, Priority: 4})
	o.StartFsmPrior(1, &PriorDesc{Key: 7, Priority: 4})

	err := g.UnionOp(o)
	var pi *PriorInteractionError
	if !errors.As(err, &pi) {
		t.Fatalf("expected PriorInteractionError, got %v", err)
	}
	if pi.ID != 7 {
		t.Errorf("conflict id = %d, want 7", pi.ID)
	}
}

// A higher priority resolves the collision silently.
func TestPriorityResolution(t *testing.T) {
	ctx := testCtx()
	fsmVal46, fsmErr46 := KeyFsm(ctx, 'a')
	g := mustFsm(t, fsmVal46, fsmErr46)
	fsmVal47, fsmErr47 := KeyFsm(ctx, 'a')
	o := mustFsm(t, fsmVal47, fsmErr47)
	act := NewAction("low", 1)
	g.StartFsmPrior(0, &PriorDesc{Key: 7, Priority: 9})
	o.StartFsmPrior(1, &PriorDesc{Key: 7, Priority: 4})
	o.StartFsmAction(0, act)

	mustOp(t, g.UnionOp(o))
	// The losing side's action must not survive on the crossed range.
	tr := findTrans(g.startState, 'a')
	if tr == nil || !tr.Plain() {
		t.Fatal("missing plain transition on a")
	}
	if tr.Data.ActionTable.Has(act) {
		t.Error("low priority side's action survived the cross")
	}
}

func TestRepeat(t *testing.T) {
	ctx := testCtx()
	fsmVal48, fsmErr48 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal48, fsmErr48)
	mustOp(t, g.RepeatOp(3))
	want := []string{"ababab"}
	if diff := cmp.Diff(want, language(g, "ab", 6)); diff != "" {
		t.Errorf("language mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionalRepeat(t *testing.T) {
	ctx := testCtx()
	fsmVal49, fsmErr49 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal49, fsmErr49)
	mustOp(t, g.OptionalRepeatOp(2))
	want := []string{"", "ab", "abab"}
	if diff := cmp.Diff(want, language(g, "ab", 4)); diff != "" {
		t.Errorf("language mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatZeroIsLambda(t *testing.T) {
	ctx := testCtx()
	fsmVal50, fsmErr50 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal50, fsmErr50)
	mustOp(t, g.RepeatOp(0))
	want := []string{""}
	if diff := cmp.Diff(want, language(g, "ab", 2)); diff != "" {
		t.Errorf("language mismatch (-want +got):\n%s", diff)
	}
}

func TestRepeatNegative(t *testing.T) {
	ctx := testCtx()
	fsmVal51, fsmErr51 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal51, fsmErr51)
	var re *RepetitionError
	if err := g.RepeatOp(-1); !errors.As(err, &re) {
		t.Fatalf("expected RepetitionError, got %v", err)
	}
}

func TestStarAcceptsEmpty(t *testing.T) {
	ctx := testCtx()
	fsmVal52, fsmErr52 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal52, fsmErr52)
	mustOp(t, g.StarOp())
	want := []string{"", "ab", "abab"}
	if diff := cmp.Diff(want, language(g, "ab", 4)); diff != "" {
		t.Errorf("language mismatch (-want +got):\n%s", diff)
	}
}

func TestJoin(t *testing.T) {
	ctx := testCtx()
	const (
		enA     = 10
		enB     = 20
		enFinal = 30
	)

	fsmVal53, fsmErr53 := StringFsm(ctx, keys("ab"))
	a := mustFsm(t, fsmVal53, fsmErr53)
	a.SetEntry(enA, a.startState)
	a.EpsilonTrans(enB)
	for _, f := range a.finStates() {
		a.UnsetFinState(f)
	}

	fsmVal54, fsmErr54 := StringFsm(ctx, keys("cd"))
	b := mustFsm(t, fsmVal54, fsmErr54)
	b.SetEntry(enB, b.startState)
	b.EpsilonTrans(enFinal)
	for _, f := range b.finStates() {
		b.UnsetFinState(f)
	}

	fsmVal55, fsmErr55 := LambdaFsm(ctx)
	fin := mustFsm(t, fsmVal55, fsmErr55)
	fin.SetEntry(enFinal, fin.startState)

	mustOp(t, a.JoinOp(enA, enFinal, []*Fsm{b, fin}))

	if !accepts(a, "abcd") {
		t.Error("join must accept abcd")
	}
	for _, w := range []string{"ab", "cd", "abc", "abcda"} {
		if accepts(a, w) {
			t.Errorf("join must reject %q", w)
		}
	}
	checkIntegrity(t, a)
}

func TestGlobOp(t *testing.T) {
	ctx := testCtx()
	fsmVal56, fsmErr56 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal56, fsmErr56)
	fsmVal57, fsmErr57 := StringFsm(ctx, keys("cd"))
	o := mustFsm(t, fsmVal57, fsmErr57)
	o.SetEntry(5, o.startState)
	before := stateCount(g) + stateCount(o)
	mustOp(t, g.GlobOp([]*Fsm{o}))
	if got := stateCount(g); got != before {
		t.Errorf("state count = %d, want %d", got, before)
	}
	if _, ok := g.entryPoints[5]; !ok {
		t.Error("entry points must carry over")
	}
	// The glob does not connect anything; only this machine's words.
	if !accepts(g, "ab") || accepts(g, "cd") {
		t.Error("glob must not connect the machines")
	}
}

func TestNfaUnion(t *testing.T) {
	opts := DefaultOptions()
	opts.NfaTermCheck = true
	ctx := NewCtx(AsciiKeyOps(), opts)

	fsmVal58, fsmErr58 := StringFsm(ctx, keys("ab"))
	g := mustFsm(t, fsmVal58, fsmErr58)
	fsmVal59, fsmErr59 := StringFsm(ctx, keys("cd"))
	o := mustFsm(t, fsmVal59, fsmErr59)

	mustOp(t, g.NfaUnionOp([]*Fsm{o}, 0))
	if len(g.startState.nfaOut) != 2 {
		t.Fatalf("nfa branch count = %d, want 2", len(g.startState.nfaOut))
	}
	if g.startState.nfaOut[0].Order != 0 || g.startState.nfaOut[1].Order != 1 {
		t.Error("nfa branches must keep their order")
	}

	// A condensation round resolves the branching into plain transitions.
	fsmVal60, fsmErr60 := StringFsm(ctx, keys("ab"))
	g2 := mustFsm(t, fsmVal60, fsmErr60)
	fsmVal61, fsmErr61 := StringFsm(ctx, keys("cd"))
	o2 := mustFsm(t, fsmVal61, fsmErr61)
	mustOp(t, g2.NfaUnionOp([]*Fsm{o2}, 1))
	if !accepts(g2, "ab") || !accepts(g2, "cd") {
		t.Error("condensed nfa union must accept both words")
	}
	if len(g2.NfaRounds) == 0 {
		t.Error("termination check must record rounds")
	}
}

func TestNfaRepeatShape(t *testing.T) {
	ctx := testCtx()
	fsmVal62, fsmErr62 := StringFsm(ctx, keys("a"))
	g := mustFsm(t, fsmVal62, fsmErr62)

	init := NewAction("init", 1)
	min := NewAction("min", 2)
	max := NewAction("max", 3)
	push := NewAction("push", 4)
	pop := NewAction("pop", 5)
	mustOp(t, g.NfaRepeat(init, min, max, push, pop))

	start := g.startState
	if len(start.nfaOut) != 1 {
		t.Fatalf("start nfa branches = %d, want 1", len(start.nfaOut))
	}
	entry := start.nfaOut[0]
	if !entry.PushTable.Has(init) || !entry.PushTable.Has(push) {
		t.Error("entry branch must push init and push")
	}
	loopFrom := entry.ToState
	var loopState *State
	for _, t2 := range loopFrom.outList {
		if t2.Plain() && t2.Data.ToState != nil {
			loopState = t2.Data.ToState
		}
	}
	if loopState == nil {
		t.Fatal("missing loop body state")
	}
	if len(loopState.nfaOut) != 2 {
		t.Fatalf("loop state nfa branches = %d, want 2", len(loopState.nfaOut))
	}
	loop, exit := loopState.nfaOut[0], loopState.nfaOut[1]
	if !loop.PushTable.Has(push) || !loop.PopTest.Has(max) {
		t.Error("loop branch must push and test max")
	}
	if !exit.PopTest.Has(min) || !exit.PopAction.Has(pop) {
		t.Error("exit branch must test min and pop")
	}
	if loop.PopTest.Has(min) {
		t.Error("loop branch of the current encoding carries no min guard")
	}
	if !exit.ToState.IsFinal() {
		t.Error("exit state must be final")
	}
}

func TestNfaRepeatLegacyShape(t *testing.T) {
	ctx := testCtx()
	fsmVal63, fsmErr63 := StringFsm(ctx, keys("a"))
	g := mustFsm(t, fsmVal63, fsmErr63)

	init := NewAction("init", 1)
	min := NewAction("min", 2)
	max := NewAction("max", 3)
	push := NewAction("push", 4)
	pop := NewAction("pop", 5)
	mustOp(t, g.NfaRepeatLegacy(init, min, max, push, pop))

	var loopState *State
	for s := g.stateList.head; s != nil; s = s.next {
		if len(s.nfaOut) == 2 {
			loopState = s
		}
	}
	if loopState == nil {
		t.Fatal("missing loop state")
	}
	loop, exit := loopState.nfaOut[0], loopState.nfaOut[1]
	if !loop.PopTest.Has(min) || !loop.PopTest.Has(max) {
		t.Error("legacy loop branch carries both guards")
	}
	if !exit.PopTest.Has(min) || !exit.PopTest.Has(max) {
		t.Error("legacy exit branch carries both guards")
	}
}

func TestContextMismatchPanics(t *testing.T) {
	fsmVal64, fsmErr64 := KeyFsm(testCtx(), 'a')
	g := mustFsm(t, fsmVal64, fsmErr64)
	fsmVal65, fsmErr65 := KeyFsm(testCtx(), 'a')
	o := mustFsm(t, fsmVal65, fsmErr65)
	defer func() {
		if recover() == nil {
			t.Fatal("combining machines from different contexts must panic")
		}
	}()
	_ = g.UnionOp(o)
}

func TestStateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.StateLimit = 2
	ctx := NewCtx(AsciiKeyOps(), opts)
	_, err := StringFsm(ctx, keys("abc"))
	var tms *TooManyStatesError
	if !errors.As(err, &tms) {
		t.Fatalf("expected TooManyStatesError, got %v", err)
	}
	if tms.Limit != 2 {
		t.Errorf("limit = %d, want 2", tms.Limit)
	}
}
