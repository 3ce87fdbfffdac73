package main

import "tigercfg/ir"

// ComputeMetrics calculates size, branching, and cyclomatic complexity for
// every graph. Fan-in and fan-out are filled in later by ComputeFanInOut.
//
// Cyclomatic complexity is E - N + 2 over the instruction graph extended with
// a virtual exit that every instruction without successors flows into. A
// branch whose target is the next instruction contributes one edge.
func ComputeMetrics(funcs []FuncGraph, cpg *CPG, prog *Progress) {
	prog.Log("Computing metrics...")

	for _, fg := range funcs {
		g := fg.Graph
		n := g.Len()
		m := &Metrics{
			FunctionID:   fg.ID(),
			Instructions: n,
			NumParams:    len(fg.Func.Params),
		}

		var exits int
		for i, in := range g.Instructions() {
			outs := distinctInts(g.Outgoing(i))
			if len(outs) == 0 {
				exits++
			}
			m.Edges += len(outs)
			m.Defs += len(g.Defs(i))
			m.Uses += len(g.Uses(i))
			switch {
			case in.Op.IsBranch():
				m.Branches++
			case in.Op == ir.OpCall, in.Op == ir.OpCallr:
				m.Calls++
			}
		}

		m.CyclomaticComplexity = (m.Edges + exits) - (n + 1) + 2
		if m.CyclomaticComplexity < 1 {
			m.CyclomaticComplexity = 1
		}
		cpg.Metrics[m.FunctionID] = m
	}

	prog.Log("Computed metrics for %d functions", len(funcs))
}

// Outgoing lists hold at most two entries.
func distinctInts(xs []int) []int {
	if len(xs) < 2 || xs[0] != xs[1] {
		return xs
	}
	return xs[:1]
}
