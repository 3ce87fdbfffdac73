package main

import (
	"io"
	"strings"
	"testing"

	"tigercfg/cfg"
	"tigercfg/ir"
)

func quietProgress() *Progress { return NewProgressTo(io.Discard, false) }

// buildUnit reads src as the IR file named file and builds every function.
func buildUnit(t *testing.T, file, src string) (*Unit, []FuncGraph) {
	t.Helper()
	p, err := ir.ReadProgram(strings.NewReader(src))
	if err != nil {
		t.Fatalf("read %s: %v", file, err)
	}
	var funcs []FuncGraph
	for _, fn := range p.Functions {
		g, err := cfg.New(fn)
		if err != nil {
			t.Fatalf("build %s: %v", fn.Name, err)
		}
		funcs = append(funcs, FuncGraph{File: file, Func: fn, Graph: g})
	}
	return &Unit{File: file, Source: src, Program: p}, funcs
}

// edgeSet returns the source→target pairs of all edges of the given kind.
func edgeSet(cpg *CPG, kind string) map[[2]string]Edge {
	out := make(map[[2]string]Edge)
	for _, e := range cpg.Edges {
		if e.Kind == kind {
			out[[2]string{e.Source, e.Target}] = e
		}
	}
	return out
}

func nodeByID(cpg *CPG, id string) (Node, bool) {
	for _, n := range cpg.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

const loopIR = `
#start_function
void loop():
int-list: i
top:
    brgt, out, i, 10
    add, i, i, 1
    goto, top
out:
    return
#end_function
`

const reachIR = `
#start_function
void f():
int-list: x, y
    assign, x, 1
    brgt, L, x, 0
    assign, x, 2
L:
    add, y, x, x
    return
#end_function
`

const callsIR = `
#start_function
int sum(int a, int b):
int-list: s
    add, s, a, b
    return, s
#end_function

#start_function
void main():
int-list: r, t
    callr, r, sum, t, 2
    callr, r, sum, r, r
    call, puti, r
    call, even, 4
#end_function

#start_function
int even(int n):
int-list: r
    breq, zero, n, 0
    callr, r, odd, n
    return, r
zero:
    return, 1
#end_function

#start_function
int odd(int n):
int-list: r
    callr, r, even, n
    return, r
#end_function

#start_function
void spin():
    call, spin
#end_function
`
