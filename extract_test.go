package main

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractCFGAndDFG(t *testing.T) {
	unit, funcs := buildUnit(t, "reach.ir", reachIR)
	cpg := NewCPG()
	ExtractCFGAndDFG([]*Unit{unit}, funcs, cpg, quietProgress())

	fn := funcs[0].ID()
	i := func(k int) string { return InstrID(fn, k) }

	if cpg.Sources["reach.ir"] != reachIR {
		t.Error("source text not recorded")
	}
	node, ok := nodeByID(cpg, fn)
	if !ok {
		t.Fatal("missing function node")
	}
	if node.TypeInfo != "void f()" || node.Properties["instructions"] != 6 {
		t.Errorf("function node = %+v", node)
	}
	instr, ok := nodeByID(cpg, i(4))
	if !ok || instr.Name != "add" || instr.Properties["text"] != "add, y, x, x" || instr.ParentFunction != fn {
		t.Errorf("instruction node 4 = %+v", instr)
	}

	type labelled struct{ From, To, Label string }
	var gotCFG []labelled
	for _, e := range cpg.Edges {
		if e.Kind == "cfg" {
			gotCFG = append(gotCFG, labelled{e.Source, e.Target, e.Properties["label"].(string)})
		}
	}
	wantCFG := []labelled{
		{fn, i(0), "entry"},
		{i(0), i(1), "fallthrough"},
		{i(1), i(3), "taken"},
		{i(1), i(2), "fallthrough"},
		{i(2), i(3), "fallthrough"},
		{i(3), i(4), "fallthrough"},
		{i(4), i(5), "fallthrough"},
		{i(5), fn, "exit"},
	}
	if diff := cmp.Diff(wantCFG, gotCFG); diff != "" {
		t.Errorf("cfg edges mismatch (-want +got):\n%s", diff)
	}

	defs := edgeSet(cpg, "def")
	for _, k := range [][2]string{
		{i(0), VarID(fn, "x")},
		{i(2), VarID(fn, "x")},
		{i(4), VarID(fn, "y")},
	} {
		if _, ok := defs[k]; !ok {
			t.Errorf("missing def edge %v", k)
		}
	}
	if len(defs) != 3 {
		t.Errorf("got %d def edges, want 3", len(defs))
	}

	uses := edgeSet(cpg, "use")
	use, ok := uses[[2]string{VarID(fn, "x"), i(4)}]
	if !ok {
		t.Fatal("missing use edge x → 4")
	}
	if use.Properties["count"] != 2 || use.Properties["index"] != 0 {
		t.Errorf("use properties = %v, want count 2 at index 0", use.Properties)
	}
	if len(uses) != 2 {
		t.Errorf("got %d use edges, want 2", len(uses))
	}

	dfg := edgeSet(cpg, "dfg")
	want := map[[2]string]bool{
		{i(0), i(1)}: true,
		{i(0), i(4)}: true,
		{i(2), i(4)}: true,
	}
	got := make(map[[2]string]bool)
	for k := range dfg {
		got[k] = true
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dfg edges mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_BranchToNextInstruction(t *testing.T) {
	_, funcs := buildUnit(t, "next.ir", `
#start_function
void n():
int-list: a
    brneq, L, a, 0
L:
    return
#end_function
`)
	cpg := NewCPG()
	ExtractCFGAndDFG(nil, funcs, cpg, quietProgress())

	fn := funcs[0].ID()
	e, ok := edgeSet(cpg, "cfg")[[2]string{InstrID(fn, 0), InstrID(fn, 1)}]
	if !ok {
		t.Fatal("missing cfg edge 0 → 1")
	}
	if e.Properties["label"] != "taken" {
		t.Errorf("label = %v, want the taken edge to win", e.Properties["label"])
	}
}

func TestReachingDefs_Loop(t *testing.T) {
	_, funcs := buildUnit(t, "loop.ir", loopIR)
	sites, byVar, in := reachingDefs(funcs[0].Graph)
	if len(sites) != 1 || sites[0].instr != 2 {
		t.Fatalf("sites = %v, want the add at 2", sites)
	}
	// The increment reaches the loop test through the back edge.
	if !in[1].Test(byVar["i"][0]) {
		t.Error("definition at 2 does not reach the branch at 1")
	}
	if !in[5].Test(byVar["i"][0]) {
		t.Error("definition at 2 does not reach the return")
	}
}

func TestBuildGraphs_Skip(t *testing.T) {
	unit, _ := buildUnit(t, "calls.ir", callsIR)
	conf := &Config{Workers: 2, SkipFunctions: []string{"sp*", "odd"}}
	funcs, err := BuildGraphs(context.Background(), &LoadResult{Units: []*Unit{unit}}, conf, quietProgress())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fg := range funcs {
		names = append(names, fg.Func.Name)
		if fg.Graph == nil || fg.Graph.Name() != fg.Func.Name {
			t.Errorf("%s: graph not attached", fg.Func.Name)
		}
	}
	if diff := cmp.Diff([]string{"sum", "main", "even"}, names); diff != "" {
		t.Errorf("built functions mismatch (-want +got):\n%s", diff)
	}
}
