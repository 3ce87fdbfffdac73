// Package cfg builds per-instruction control-flow graphs with def/use sets
// for single IR functions.
//
// A Graph is built once, eagerly, from one function and is read-only
// afterwards. Indices used throughout are local to the function: the global
// line number of an instruction minus the line number of the function's
// first instruction (the base offset).
package cfg

import (
	"fmt"
	"slices"
	"strings"

	"tigercfg/ir"
)

// EdgeKind tells whether an outgoing edge is the jump/branch target or the
// fallthrough to the next instruction.
type EdgeKind uint8

const (
	Fallthrough EdgeKind = iota
	Taken
)

func (k EdgeKind) String() string {
	if k == Taken {
		return "taken"
	}
	return "fallthrough"
}

// Graph is the control-flow graph of one function at instruction
// granularity. All per-instruction sequences are index-aligned with
// Instructions.
type Graph struct {
	name   string
	base   int
	instrs []*ir.Instruction

	ins   [][]int
	outs  [][]int
	kinds [][]EdgeKind
	defs  [][]string
	uses  [][]string
}

// Name returns the function name.
func (g *Graph) Name() string { return g.name }

// Base returns the global line number of the first instruction.
func (g *Graph) Base() int { return g.base }

// Len returns the number of instructions.
func (g *Graph) Len() int { return len(g.instrs) }

// Instructions returns the instruction sequence the graph was built from.
// The slice is shared and must not be modified.
func (g *Graph) Instructions() []*ir.Instruction { return g.instrs }

// Incoming returns the positions that reach i directly, in discovery order.
// The slice is shared and must not be modified.
func (g *Graph) Incoming(i int) []int { return g.ins[i] }

// Outgoing returns the positions reachable directly from i. A branch target
// precedes the fallthrough. The slice is shared and must not be modified.
func (g *Graph) Outgoing(i int) []int { return g.outs[i] }

// OutgoingKinds is index-aligned with Outgoing(i). The slice is shared and
// must not be modified.
func (g *Graph) OutgoingKinds(i int) []EdgeKind { return g.kinds[i] }

// Defs returns the variables instruction i defines, in operand order. The
// slice is shared and must not be modified.
func (g *Graph) Defs(i int) []string { return g.defs[i] }

// Uses returns the variables instruction i uses, in operand order. A variable
// read in two operand slots appears twice. The slice is shared and must not
// be modified.
func (g *Graph) Uses(i int) []string { return g.uses[i] }

// String renders the graph for debugging. The format is not stable.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("Function name: " + g.name + "\n")
	for i, in := range g.instrs {
		fmt.Fprintf(&b, "%s; (* ins: %s\touts: %s*)\n", in, list(g.ins[i]), list(g.outs[i]))
		fmt.Fprintf(&b, "(* defs: %s; uses: %s *)\n", list(g.defs[i]), list(g.uses[i]))
	}
	return b.String()
}

func list[T any](xs []T) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, x)
	}
	b.WriteByte(']')
	return b.String()
}

// New builds the graph of fn. It fails with an error wrapping ErrMalformedIR
// when fn has no instructions, its numbering has gaps, or a jump names a label
// the function does not define. No graph is returned on failure.
func New(fn *ir.Function) (*Graph, error) {
	n := len(fn.Body)
	if n == 0 {
		return nil, fmt.Errorf("function %s: %w", fn.Name, ErrEmptyFunction)
	}

	g := &Graph{
		name:   fn.Name,
		base:   fn.Body[0].Line,
		instrs: slices.Clone(fn.Body),
		ins:    make([][]int, n),
		outs:   make([][]int, n),
		kinds:  make([][]EdgeKind, n),
		defs:   make([][]string, n),
		uses:   make([][]string, n),
	}
	for i, in := range g.instrs {
		if in.Line-g.base != i {
			return nil, fmt.Errorf("function %s: instruction %d has line %d, want %d: %w",
				fn.Name, i, in.Line, g.base+i, ErrNonContiguous)
		}
	}

	labels, err := resolveLabels(g.instrs, g.base)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", fn.Name, err)
	}

	// Every instruction has at most two successors.
	outBuf := make([]int, 2*n)
	kindBuf := make([]EdgeKind, 2*n)
	for i := range g.outs {
		g.outs[i] = outBuf[2*i : 2*i : 2*i+2]
		g.kinds[i] = kindBuf[2*i : 2*i : 2*i+2]
	}

	for i, in := range g.instrs {
		if err := g.link(i, in, labels); err != nil {
			return nil, fmt.Errorf("function %s: instruction %d (%s): %w", fn.Name, i, in, err)
		}
		g.classify(i, in)
	}
	g.invert()
	return g, nil
}

// resolveLabels maps each label name to its local position. Label names are
// expected to be unique within a function; this is not checked.
func resolveLabels(instrs []*ir.Instruction, base int) (map[string]int, error) {
	labels := make(map[string]int)
	for _, in := range instrs {
		if in.Op != ir.OpLabel {
			continue
		}
		name, ok := ir.LabelName(operand(in, 0))
		if !ok {
			return nil, fmt.Errorf("%w: label instruction at line %d has no label operand", ErrMalformedIR, in.Line)
		}
		labels[name] = in.Line - base
	}
	return labels, nil
}

func operand(in *ir.Instruction, k int) ir.Operand {
	if k < len(in.Operands) {
		return in.Operands[k]
	}
	return nil
}
