// Package mermaid serializes a machine's emission view as a mermaid
// flowchart. It consumes only the read-only graph view; the construction
// core knows nothing about it.
package mermaid

import (
	"fmt"
	"io"
	"strings"

	fsm "github.com/RobinDaugherty/colm"
)

// Options controls diagram rendering.
type Options struct {
	// DisplayPrintables renders printable keys as quoted characters
	// instead of integers.
	DisplayPrintables bool

	// EntryNames maps entry ids to display names. Unnamed entries render
	// as their id.
	EntryNames map[int]string

	// ActionNames maps action display output; by default the action's own
	// display name is used.
	ActionNames func(*fsm.Action) string
}

type writer struct {
	out  *strings.Builder
	v    *fsm.GraphView
	name string
	opts Options
}

// Write renders the view as a mermaid flowchart with a YAML title block.
func Write(w io.Writer, name string, v *fsm.GraphView, opts Options) error {
	mw := &writer{out: &strings.Builder{}, v: v, name: name, opts: opts}
	mw.write()
	_, err := io.WriteString(w, mw.out.String())
	return err
}

func (w *writer) actionName(a *fsm.Action) string {
	if w.opts.ActionNames != nil {
		return w.opts.ActionNames(a)
	}
	return a.DisplayName()
}

var escapeLetters = map[fsm.Key]string{
	0x07: "a",
	0x08: "b",
	0x09: "t",
	0x0a: "n",
	0x0b: "v",
	0x0c: "f",
	0x0d: "r",
}

// key renders one key: printables quoted and escaped, space as the literal
// token SP, backslash sequences with their escape letter, everything else
// as a signed or unsigned integer per the alphabet.
func (w *writer) key(k fsm.Key) {
	ops := w.v.KeyOps
	if w.opts.DisplayPrintables && ops.IsPrintable(k) {
		c := byte(k)
		switch c {
		case '"', '\\':
			fmt.Fprintf(w.out, "'\\%c'", c)
		case ' ':
			w.out.WriteString("SP")
		default:
			fmt.Fprintf(w.out, "'%c'", c)
		}
		return
	}
	if w.opts.DisplayPrintables {
		if esc, ok := escapeLetters[k]; ok {
			fmt.Fprintf(w.out, "'\\\\%s'", esc)
			return
		}
	}
	if ops.Signed {
		fmt.Fprintf(w.out, "%d", int64(k))
	} else {
		fmt.Fprintf(w.out, "%d", uint64(k))
	}
}

// condSpec renders a condition assignment: negated guards prefixed with a
// bang, in set order.
func (w *writer) condSpec(space *fsm.CondSpace, vals fsm.CondKey) {
	if space == nil {
		return
	}
	w.out.WriteString("(")
	for i, cond := range space.CondSet {
		if vals&(1<<i) == 0 {
			w.out.WriteString("!")
		}
		w.out.WriteString(w.actionName(cond))
		if i < len(space.CondSet)-1 {
			w.out.WriteString(", ")
		}
	}
	w.out.WriteString(")")
}

// onChar renders the key or range plus any condition assignment.
func (w *writer) onChar(lo, hi fsm.Key, space *fsm.CondSpace, vals fsm.CondKey) {
	w.key(lo)
	if w.v.KeyOps.Ne(hi, lo) {
		w.out.WriteString("..")
		w.key(hi)
	}
	w.condSpec(space, vals)
}

func (w *writer) actionList(t fsm.ActionTable) {
	for i, el := range t {
		w.out.WriteString(w.actionName(el.Action))
		if i < len(t)-1 {
			w.out.WriteString(", ")
		}
	}
}

// fromStateAction renders a state's from-state actions with the trailing
// separator, or nothing.
func (w *writer) fromStateAction(sv *fsm.StateView) {
	if len(sv.FromStateActions) == 0 {
		return
	}
	w.actionList(sv.FromStateActions)
	w.out.WriteString(" / ")
}

// transAction renders the transition actions and the destination's
// to-state actions.
func (w *writer) transAction(actions fsm.ActionTable, dest int) {
	var toState fsm.ActionTable
	if dest >= 0 {
		toState = w.v.States[dest].ToStateActions
	}
	if len(actions) == 0 && len(toState) == 0 {
		return
	}
	w.out.WriteString(" / ")
	w.actionList(actions)
	if len(actions) > 0 && len(toState) > 0 {
		w.out.WriteString(", ")
	}
	w.actionList(toState)
}

func (w *writer) destLabel(sv *fsm.StateView, dest int) string {
	if dest < 0 {
		return fmt.Sprintf("err_%d", sv.Num)
	}
	return fmt.Sprintf("%d", dest)
}

// transList renders every arrow out of one state.
func (w *writer) transList(sv *fsm.StateView) {
	for _, t := range sv.Trans {
		if t.Plain != nil {
			fmt.Fprintf(w.out, "\t%d -->", sv.Num)
			w.out.WriteString("|\"")
			w.fromStateAction(sv)
			w.onChar(t.Low, t.High, nil, 0)
			w.transAction(t.Plain.Actions, t.Plain.Dest)
			w.out.WriteString("\"| ")
			w.out.WriteString(w.destLabel(sv, t.Plain.Dest))
			w.out.WriteString("\n")
			continue
		}
		for _, b := range t.Conds {
			fmt.Fprintf(w.out, "\t%d -->", sv.Num)
			w.out.WriteString("|\"")
			w.fromStateAction(sv)
			w.onChar(t.Low, t.High, t.CondSpace, b.Key)
			w.transAction(b.Actions, b.Dest)
			w.out.WriteString("\"| ")
			w.out.WriteString(w.destLabel(sv, b.Dest))
			w.out.WriteString("\n")
		}
	}

	for _, n := range sv.Nfa {
		fmt.Fprintf(w.out, "\t%d -->|\"EP,%d ", sv.Num, n.Order)
		w.fromStateAction(sv)
		if n.PopCondSpace != nil {
			for _, k := range n.PopCondKeys {
				w.condSpec(n.PopCondSpace, k)
				w.out.WriteString(" ")
			}
		}
		w.actionList(n.PopAction)
		if len(n.PopAction) > 0 && len(n.PopTest) > 0 {
			w.out.WriteString(",")
		}
		w.actionList(n.PopTest)
		fmt.Fprintf(w.out, "\"| %d\n", n.Dest)
	}
}

func (w *writer) entryName(id int) string {
	if name, ok := w.opts.EntryNames[id]; ok {
		return name
	}
	return fmt.Sprintf("%d", id)
}

func (w *writer) write() {
	fmt.Fprintf(w.out, "---\ntitle: %s\n---\nflowchart LR\n", w.name)

	// Pseudo states are points: circles with a blank label. Transitions
	// come after the states have been declared final or not.
	if w.v.Start >= 0 {
		w.out.WriteString("\tENTRY(( ))\n")
	}
	for _, id := range sortedEntryIDs(w.v.Entries) {
		fmt.Fprintf(w.out, "\ten_%d(( ))\n", w.v.Entries[id])
	}
	for _, sv := range w.v.States {
		if len(sv.EofActions) > 0 {
			fmt.Fprintf(w.out, "\teof_%d(( ))\n", sv.Num)
		}
	}
	for _, sv := range w.v.States {
		if stateNeedsErr(&sv) {
			fmt.Fprintf(w.out, "\terr_%d(( ))\n", sv.Num)
		}
	}

	// Final states draw with a double circle.
	for _, sv := range w.v.States {
		if sv.Final {
			fmt.Fprintf(w.out, "\t%d(((%d)))\n", sv.Num, sv.Num)
		} else {
			fmt.Fprintf(w.out, "\t%d((%d))\n", sv.Num, sv.Num)
		}
	}

	for i := range w.v.States {
		w.transList(&w.v.States[i])
	}

	if w.v.Start >= 0 {
		fmt.Fprintf(w.out, "\tENTRY -->|\"IN\"| %d\n", w.v.Start)
	}
	for _, id := range sortedEntryIDs(w.v.Entries) {
		fmt.Fprintf(w.out, "\ten_%d -->|\"%s\"| %d\n", w.v.Entries[id], w.entryName(id), w.v.Entries[id])
	}

	// EOF arrows, with the pending out conditions when present.
	for _, sv := range w.v.States {
		if len(sv.EofActions) == 0 {
			continue
		}
		fmt.Fprintf(w.out, "\t%d -->|\"EOF", sv.Num)
		for i, k := range sv.OutCondVals {
			if i > 0 {
				w.out.WriteString("|")
			}
			w.condSpec(sv.OutCondSpace, k)
		}
		w.out.WriteString(" / ")
		w.actionList(sv.EofActions)
		fmt.Fprintf(w.out, "\"| eof_%d\n", sv.Num)
	}

	w.out.WriteString("\n")
}

func stateNeedsErr(sv *fsm.StateView) bool {
	for _, t := range sv.Trans {
		if t.Plain != nil {
			if t.Plain.Dest < 0 {
				return true
			}
			continue
		}
		for _, b := range t.Conds {
			if b.Dest < 0 {
				return true
			}
		}
	}
	return false
}

func sortedEntryIDs(entries map[int]int) []int {
	ids := make([]int, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
