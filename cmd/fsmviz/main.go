// fsmviz builds a machine from a YAML description and writes its mermaid
// flowchart to stdout. The description is a structural operator tree, not a
// pattern syntax.
//
// Example:
//
//	title: number
//	alphabet: ascii
//	machine:
//	  concat:
//	    - range: {lo: "0", hi: "9"}
//	    - star:
//	        range: {lo: "0", hi: "9"}
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	fsm "github.com/RobinDaugherty/colm"
	"github.com/RobinDaugherty/colm/pkg/mermaid"
)

type machineDoc struct {
	Title    string `yaml:"title"`
	Alphabet string `yaml:"alphabet"`
	Machine  *node  `yaml:"machine"`
}

type node struct {
	Literal string   `yaml:"literal"`
	CI      string   `yaml:"ci"`
	Or      string   `yaml:"or"`
	Range   *keyPair `yaml:"range"`
	Star    *node    `yaml:"star"`
	Repeat  *repeat  `yaml:"repeat"`

	Concat    []*node `yaml:"concat"`
	Union     []*node `yaml:"union"`
	Intersect []*node `yaml:"intersect"`
	Subtract  []*node `yaml:"subtract"`
}

type keyPair struct {
	Lo string `yaml:"lo"`
	Hi string `yaml:"hi"`
}

type repeat struct {
	Times    int   `yaml:"times"`
	Optional bool  `yaml:"optional"`
	Of       *node `yaml:"of"`
}

func main() {
	var (
		input      = flag.String("f", "-", "machine description file, - for stdin")
		printables = flag.Bool("printables", true, "render printable keys as characters")
		fence      = flag.Bool("fence", false, "wrap output in a mermaid code fence")
		noMinimize = flag.Bool("no-minimize", false, "skip minimization")
	)
	flag.Parse()

	data, err := readInput(*input)
	if err != nil {
		fatal("read input: %v", err)
	}

	var sp machineDoc
	if err := yaml.Unmarshal(data, &sp); err != nil {
		fatal("parse description: %v", err)
	}
	if sp.Machine == nil {
		fatal("description has no machine")
	}

	ctx, err := contextFor(sp.Alphabet, *noMinimize)
	if err != nil {
		fatal("%v", err)
	}
	g, err := build(ctx, sp.Machine)
	if err != nil {
		fatal("build machine: %v", err)
	}
	g.Finalize()

	title := sp.Title
	if title == "" {
		title = "fsm"
	}

	// On a terminal default to a fenced block so the output pastes
	// straight into markdown.
	useFence := *fence || isatty.IsTerminal(os.Stdout.Fd())
	if useFence {
		fmt.Println("```mermaid")
	}
	err = mermaid.Write(os.Stdout, title, g.View(), mermaid.Options{
		DisplayPrintables: *printables,
	})
	if err != nil {
		fatal("write diagram: %v", err)
	}
	if useFence {
		fmt.Println("```")
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func contextFor(alphabet string, noMinimize bool) (*fsm.Ctx, error) {
	var ops *fsm.KeyOps
	switch alphabet {
	case "", "ascii":
		ops = fsm.AsciiKeyOps()
	case "u8", "byte":
		ops = fsm.Unsigned8KeyOps()
	case "u16":
		ops = fsm.Unsigned16KeyOps()
	default:
		return nil, fmt.Errorf("unknown alphabet %q", alphabet)
	}
	opts := fsm.DefaultOptions()
	if noMinimize {
		opts.MinimizeLevel = fsm.MinimizeNone
	}
	return fsm.NewCtx(ops, opts), nil
}

func build(ctx *fsm.Ctx, n *node) (*fsm.Fsm, error) {
	switch {
	case n.Literal != "":
		return fsm.StringFsm(ctx, keysOf(n.Literal))
	case n.CI != "":
		return fsm.StringFsmCI(ctx, keysOf(n.CI))
	case n.Or != "":
		return fsm.OrFsm(ctx, keysOf(n.Or))
	case n.Range != nil:
		lo, err := singleKey(n.Range.Lo)
		if err != nil {
			return nil, err
		}
		hi, err := singleKey(n.Range.Hi)
		if err != nil {
			return nil, err
		}
		return fsm.RangeFsm(ctx, lo, hi)
	case n.Star != nil:
		g, err := build(ctx, n.Star)
		if err != nil {
			return nil, err
		}
		if err := g.StarOp(); err != nil {
			return nil, err
		}
		return g, nil
	case n.Repeat != nil:
		if n.Repeat.Of == nil {
			return nil, fmt.Errorf("repeat needs an operand")
		}
		g, err := build(ctx, n.Repeat.Of)
		if err != nil {
			return nil, err
		}
		if n.Repeat.Optional {
			err = g.OptionalRepeatOp(n.Repeat.Times)
		} else {
			err = g.RepeatOp(n.Repeat.Times)
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	case len(n.Concat) > 0:
		return buildFold(ctx, n.Concat, (*fsm.Fsm).ConcatOp)
	case len(n.Union) > 0:
		return buildFold(ctx, n.Union, (*fsm.Fsm).UnionOp)
	case len(n.Intersect) > 0:
		return buildFold(ctx, n.Intersect, (*fsm.Fsm).IntersectOp)
	case len(n.Subtract) > 0:
		return buildFold(ctx, n.Subtract, (*fsm.Fsm).SubtractOp)
	}
	return nil, fmt.Errorf("empty machine node")
}

func buildFold(ctx *fsm.Ctx, nodes []*node, op func(*fsm.Fsm, *fsm.Fsm) error) (*fsm.Fsm, error) {
	g, err := build(ctx, nodes[0])
	if err != nil {
		return nil, err
	}
	for _, child := range nodes[1:] {
		o, err := build(ctx, child)
		if err != nil {
			return nil, err
		}
		if err := op(g, o); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func keysOf(s string) []fsm.Key {
	out := make([]fsm.Key, 0, len(s))
	for _, b := range []byte(s) {
		out = append(out, fsm.Key(b))
	}
	return out
}

func singleKey(s string) (fsm.Key, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("key %q must be a single character", s)
	}
	return fsm.Key(s[0]), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fsmviz: "+format+"\n", args...)
	os.Exit(1)
}
