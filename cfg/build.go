package cfg

import (
	"fmt"

	"tigercfg/ir"
)

// link adds the outgoing edges of instruction i and the matching incoming
// edges of its successors.
func (g *Graph) link(i int, in *ir.Instruction, labels map[string]int) error {
	switch {
	case in.Op == ir.OpGoto:
		t, err := target(in, labels)
		if err != nil {
			return err
		}
		g.addEdge(i, t, Taken)
	case in.Op.IsBranch():
		t, err := target(in, labels)
		if err != nil {
			return err
		}
		g.addEdge(i, t, Taken)
		g.addNext(i)
	default:
		g.addNext(i)
	}
	return nil
}

func (g *Graph) addNext(i int) {
	if i+1 < len(g.instrs) {
		g.addEdge(i, i+1, Fallthrough)
	}
}

func (g *Graph) addEdge(from, to int, kind EdgeKind) {
	g.outs[from] = append(g.outs[from], to)
	g.kinds[from] = append(g.kinds[from], kind)
}

// invert fills ins from outs in discovery order. All incoming lists share
// one buffer sized by a predecessor count.
func (g *Graph) invert() {
	counts := make([]int, len(g.outs))
	total := 0
	for _, outs := range g.outs {
		for _, j := range outs {
			counts[j]++
			total++
		}
	}
	buf := make([]int, total)
	off := 0
	for j, c := range counts {
		g.ins[j] = buf[off : off : off+c]
		off += c
	}
	for i, outs := range g.outs {
		for _, j := range outs {
			g.ins[j] = append(g.ins[j], i)
		}
	}
}

func target(in *ir.Instruction, labels map[string]int) (int, error) {
	name, ok := ir.LabelName(operand(in, 0))
	if !ok {
		return 0, fmt.Errorf("%w: %s without label operand", ErrMalformedIR, in.Op)
	}
	t, ok := labels[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownLabel)
	}
	return t, nil
}

// classify records the variables instruction i defines and uses.
func (g *Graph) classify(i int, in *ir.Instruction) {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMult, ir.OpDiv, ir.OpAnd, ir.OpOr:
		g.use(i, operand(in, 1), operand(in, 2))
		g.def(i, operand(in, 0))
	case ir.OpBreq, ir.OpBrneq, ir.OpBrlt, ir.OpBrgt, ir.OpBrgeq, ir.OpBrleq:
		g.use(i, operand(in, 1), operand(in, 2))
	case ir.OpAssign:
		// The three-operand form (array initialisation) is left unclassified.
		if len(in.Operands) == 2 {
			g.use(i, operand(in, 1))
			g.def(i, operand(in, 0))
		}
	case ir.OpArrayStore:
		g.use(i, operand(in, 0))
	case ir.OpArrayLoad:
		g.def(i, operand(in, 0))
	case ir.OpCall:
		g.use(i, in.Operands...)
	case ir.OpCallr:
		if len(in.Operands) > 1 {
			g.use(i, in.Operands[1:]...)
		}
		g.def(i, operand(in, 0))
	case ir.OpGoto, ir.OpLabel, ir.OpReturn:
	default:
	}
}

func (g *Graph) use(i int, ops ...ir.Operand) {
	for _, op := range ops {
		if name, ok := ir.VariableName(op); ok {
			g.uses[i] = append(g.uses[i], name)
		}
	}
}

func (g *Graph) def(i int, op ir.Operand) {
	if name, ok := ir.VariableName(op); ok {
		g.defs[i] = append(g.defs[i], name)
	}
}
