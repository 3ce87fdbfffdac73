package main

import "tigercfg/ir"

// funcIndex resolves callee names. A name defined in the caller's own file
// wins; otherwise the first file, in input order, that defines it.
type funcIndex struct {
	byFile map[string]map[string]*FuncGraph
	byName map[string]*FuncGraph
}

func newFuncIndex(funcs []FuncGraph) *funcIndex {
	idx := &funcIndex{
		byFile: make(map[string]map[string]*FuncGraph),
		byName: make(map[string]*FuncGraph),
	}
	for i := range funcs {
		fg := &funcs[i]
		if idx.byFile[fg.File] == nil {
			idx.byFile[fg.File] = make(map[string]*FuncGraph)
		}
		idx.byFile[fg.File][fg.Func.Name] = fg
		if _, ok := idx.byName[fg.Func.Name]; !ok {
			idx.byName[fg.Func.Name] = fg
		}
	}
	return idx
}

func (idx *funcIndex) lookup(file, name string) *FuncGraph {
	if fg, ok := idx.byFile[file][name]; ok {
		return fg
	}
	return idx.byName[name]
}

// callOperands splits a call or callr instruction into callee name and
// argument operands.
func callOperands(in *ir.Instruction) (string, []ir.Operand, bool) {
	var k int
	switch in.Op {
	case ir.OpCall:
		k = 0
	case ir.OpCallr:
		k = 1
	default:
		return "", nil, false
	}
	if k >= len(in.Operands) {
		return "", nil, false
	}
	ref, ok := in.Operands[k].(*ir.FuncRef)
	if !ok {
		return "", nil, false
	}
	return ref.Name, in.Operands[k+1:], true
}

// BuildCallGraph resolves call and callr instructions and emits call,
// call_site, param_in, param_out, and call_to_return edges. Callees that no
// loaded file defines become external stub nodes.
func BuildCallGraph(funcs []FuncGraph, cpg *CPG, prog *Progress) {
	prog.Log("Building call graph...")

	idx := newFuncIndex(funcs)
	var callEdges, callSiteEdges, paramInEdges, paramOutEdges, callToReturnEdges int
	var stubCount, resolved, unresolved int
	pairs := make(map[edgeKey]map[string]any)

	for _, fg := range funcs {
		callerID := fg.ID()
		instrs := fg.Graph.Instructions()

		for i, in := range instrs {
			name, args, ok := callOperands(in)
			if !ok {
				continue
			}
			siteID := InstrID(callerID, i)

			callee := idx.lookup(fg.File, name)
			var calleeID string
			if callee != nil {
				calleeID = callee.ID()
				resolved++
			} else {
				calleeID = ExternalID(name)
				unresolved++
				if !cpg.HasNode(calleeID) {
					cpg.AddNode(Node{
						ID:   calleeID,
						Kind: "function",
						Name: name,
						Properties: map[string]any{
							"external": true,
						},
					})
					stubCount++
				}
			}

			// Emit function→function call edge, counting sites per pair
			k := edgeKey{callerID, calleeID, "call"}
			if props, seen := pairs[k]; seen {
				props["sites"] = props["sites"].(int) + 1
			} else {
				props = map[string]any{"sites": 1}
				pairs[k] = props
				cpg.AddEdge(Edge{Source: callerID, Target: calleeID, Kind: "call", Properties: props})
				callEdges++
			}

			siteProps := map[string]any{"callee": name, "args": len(args)}
			if callee != nil && len(args) != len(callee.Func.Params) {
				siteProps["arity_mismatch"] = true
				prog.Verbose("  %s:%d: %s passes %d arguments, %s takes %d",
					fg.File, in.SrcLine, in.Op, len(args), name, len(callee.Func.Params))
			}
			cpg.AddEdge(Edge{Source: siteID, Target: calleeID, Kind: "call_site", Properties: siteProps})
			callSiteEdges++

			// Call-to-return: locals survive the call along the fallthrough
			if i+1 < len(instrs) {
				cpg.AddEdge(Edge{
					Source: siteID, Target: InstrID(callerID, i+1), Kind: "call_to_return",
				})
				callToReturnEdges++
			}

			if callee == nil {
				continue
			}

			// ParamIn edges: actual argument variable → formal parameter
			for pos, arg := range args {
				if pos >= len(callee.Func.Params) {
					break
				}
				argName, ok := ir.VariableName(arg)
				if !ok {
					continue
				}
				if cpg.AddEdge(Edge{
					Source: VarID(callerID, argName),
					Target: VarID(calleeID, callee.Func.Params[pos].Name),
					Kind:   "param_in",
					Properties: map[string]any{
						"index": pos,
						"site":  siteID,
					},
				}) {
					paramInEdges++
				}
			}

			// ParamOut edges: each value-returning return of the callee → callr site
			if in.Op != ir.OpCallr {
				continue
			}
			for r, ret := range callee.Graph.Instructions() {
				if ret.Op != ir.OpReturn || len(ret.Operands) == 0 {
					continue
				}
				cpg.AddEdge(Edge{
					Source: InstrID(calleeID, r), Target: siteID, Kind: "param_out",
				})
				paramOutEdges++
			}
		}
	}

	prog.Log("Resolved %d call sites, %d unresolved, %d external stubs", resolved, unresolved, stubCount)
	prog.Log("Created %d call, %d call_site, %d param_in, %d param_out, %d call_to_return edges", callEdges, callSiteEdges, paramInEdges, paramOutEdges, callToReturnEdges)
}

// ComputeFanInOut calculates fan-in, fan-out, and recursion from the call
// edges. Must be called after BuildCallGraph and ComputeMetrics. Call targets
// without a metrics entry (external stubs) get a minimal one so fan-in is
// kept. Functions on a call cycle, direct or mutual, are marked recursive.
func ComputeFanInOut(cpg *CPG) {
	fanIn := make(map[string]int)
	fanOut := make(map[string]int)
	callees := make(map[string][]string)

	for _, e := range cpg.Edges {
		if e.Kind != "call" {
			continue
		}
		fanOut[e.Source]++
		fanIn[e.Target]++
		callees[e.Source] = append(callees[e.Source], e.Target)
	}

	recursive := make(map[string]bool)
	for fn := range callees {
		if reachesSelf(fn, callees) {
			recursive[fn] = true
		}
	}

	for i := range cpg.Nodes {
		if cpg.Nodes[i].Kind == "function" && recursive[cpg.Nodes[i].ID] {
			if cpg.Nodes[i].Properties == nil {
				cpg.Nodes[i].Properties = map[string]any{}
			}
			cpg.Nodes[i].Properties["recursive"] = true
		}
	}

	for funcID, m := range cpg.Metrics {
		m.FanIn = fanIn[funcID]
		m.FanOut = fanOut[funcID]
		m.Recursive = recursive[funcID]
	}

	for targetID, fi := range fanIn {
		if _, exists := cpg.Metrics[targetID]; !exists {
			cpg.Metrics[targetID] = &Metrics{
				FunctionID: targetID,
				FanIn:      fi,
				FanOut:     fanOut[targetID],
			}
		}
	}
}

// reachesSelf reports whether fn lies on a cycle of the call graph.
func reachesSelf(fn string, callees map[string][]string) bool {
	visited := make(map[string]bool)
	stack := append([]string(nil), callees[fn]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == fn {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, callees[cur]...)
	}
	return false
}
